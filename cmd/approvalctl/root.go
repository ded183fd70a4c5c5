package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/oa-approval/internal/config"
	"github.com/garyjia/oa-approval/internal/container"
	"github.com/garyjia/oa-approval/pkg/utils"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "approvalctl",
		Short:         "Administration tools for the approval workflow service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "configs/config.yaml", "Path to the configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr at debug level")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newWorkflowsCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Driver != container.DriverSQLite {
		return nil, nil, fmt.Errorf("approvalctl needs the sqlite driver, config has %q", cfg.Database.Driver)
	}

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{Level: level, OutputPath: "stderr", Format: "console"})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openContainer opens the service components without background workers
// or startup seeding.
func (o *rootOptions) openContainer(ctx context.Context) (*container.Container, error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, err
	}

	cc := cfg.ToContainerConfig()
	cc.Catalog.SeedOnStart = false
	cc.Engine.SynchronousNotifications = true

	c, err := container.NewContainer(cc, logger)
	if err != nil {
		return nil, err
	}
	if err := c.Open(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
