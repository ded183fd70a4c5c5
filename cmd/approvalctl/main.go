// Command approvalctl administers the approval service database: schema
// migrations, catalog seeding, workflow listing and audit exports.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
