package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyjia/oa-approval/internal/domain/entity"
)

func newWorkflowsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Inspect workflow definitions",
	}
	cmd.AddCommand(newWorkflowsListCmd(opts))
	return cmd
}

func newWorkflowsListCmd(opts *rootOptions) *cobra.Command {
	var (
		filter entity.WorkflowFilter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			defs, err := c.Catalog().List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				if defs == nil {
					defs = []*entity.WorkflowDefinition{}
				}
				return writeJSON(cmd.OutOrStdout(), defs)
			}
			return writeWorkflowTable(cmd.OutOrStdout(), defs)
		},
	}

	cmd.Flags().StringVar(&filter.RequestType, "type", "", "Only this request type")
	cmd.Flags().StringVar(&filter.Category, "category", "", "Only this category")
	cmd.Flags().StringVar(&filter.Department, "department", "", "Only definitions applicable to this department")
	cmd.Flags().BoolVar(&filter.EnabledOnly, "enabled-only", false, "Hide disabled definitions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func writeWorkflowTable(w io.Writer, defs []*entity.WorkflowDefinition) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTYPE\tSCOPE\tDEFAULT\tENABLED\tSTEPS")
	for _, d := range defs {
		scope := d.ScopeKind
		if d.ScopeKind == entity.ScopeDept {
			scope = "dept:" + d.ScopeValue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%d\n", d.Key, d.RequestType, scope, d.IsDefault, d.Enabled, len(d.Steps))
	}
	return tw.Flush()
}
