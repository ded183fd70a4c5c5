package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/oa-approval/pkg/database"
)

type migrateOutput struct {
	Path     string `json:"path"`
	Applied  int    `json:"applied"`
	Versions []int  `json:"versions"`
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.New(database.Config{
				Path:        cfg.Database.Path,
				BusyTimeout: cfg.Database.BusyTimeout,
			}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := database.NewMigrator(db, logger)
			applied, err := migrator.RunMigrations(sqlite.Migrations())
			if err != nil {
				return err
			}

			versions, err := migrator.AppliedVersions()
			if err != nil {
				return err
			}
			out := migrateOutput{Path: cfg.Database.Path, Applied: applied, Versions: make([]int, 0, len(versions))}
			for v := range versions {
				out.Versions = append(out.Versions, v)
			}
			sort.Ints(out.Versions)

			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}
