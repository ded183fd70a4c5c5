package main

import (
	"github.com/spf13/cobra"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var (
		usersFile     string
		workflowsFile string
		skipUsers     bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and workflow definitions from YAML",
		Long: "Upserts directory users and workflow definitions. Workflows go through the " +
			"catalog, so every definition is validated exactly as an API write would be.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			cfg := c.Config()
			if usersFile == "" {
				usersFile = cfg.Catalog.UsersFile
			}
			if workflowsFile == "" {
				workflowsFile = cfg.Catalog.WorkflowsFile
			}
			if skipUsers {
				usersFile = ""
			}

			res, err := c.Seeder().SeedFiles(cmd.Context(), usersFile, workflowsFile)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&usersFile, "users", "", "Users YAML file (defaults to catalog.users_file)")
	cmd.Flags().StringVar(&workflowsFile, "workflows", "", "Workflows YAML file (defaults to catalog.workflows_file)")
	cmd.Flags().BoolVar(&skipUsers, "skip-users", false, "Seed workflows only")
	return cmd
}
