package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyjia/oa-approval/internal/domain/entity"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		filter entity.RequestFilter
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export requests with their tasks and audit trail to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			requests, err := c.Engine().ListRequests(ctx, filter)
			if err != nil {
				return err
			}

			details := make([]*entity.RequestDetail, 0, len(requests))
			for _, req := range requests {
				detail, err := c.Engine().GetRequest(ctx, req.ID)
				if err != nil {
					return fmt.Errorf("load request %d: %w", req.ID, err)
				}
				details = append(details, detail)
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := c.Exporter().ExportRequests(ctx, f, details); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "exported %d requests to %s\n", len(details), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "requests.xlsx", "Output file")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only requests in this status")
	cmd.Flags().StringVar(&filter.Type, "type", "", "Only requests of this type")
	cmd.Flags().Int64Var(&filter.OwnerID, "owner", 0, "Only requests of this owner")
	cmd.Flags().IntVar(&filter.Limit, "limit", 500, "Maximum number of requests")
	return cmd
}
