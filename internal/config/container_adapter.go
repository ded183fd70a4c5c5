package config

import (
	"github.com/garyjia/oa-approval/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			AutoMigrate:     c.Database.AutoMigrate,
		},
		Directory: container.DirectoryConfig{
			Timeout:   c.Directory.Timeout,
			AdminRole: c.Directory.AdminRole,
		},
		Engine: container.EngineConfig{
			SynchronousNotifications: c.Engine.SynchronousNotifications,
		},
		Lark: container.LarkConfig{
			Enabled:    c.Lark.Enabled,
			AppID:      c.Lark.AppID,
			AppSecret:  c.Lark.AppSecret,
			BaseURL:    c.Lark.BaseURL,
			APITimeout: c.Lark.APITimeout,
		},
		Worker: container.WorkerConfig{
			DeliveryPollInterval: c.Worker.DeliveryPollInterval,
			DeliveryBatchSize:    c.Worker.DeliveryBatchSize,
			DeliveryMaxAttempts:  c.Worker.DeliveryMaxAttempts,
		},
		Catalog: container.CatalogConfig{
			WorkflowsFile: c.Catalog.WorkflowsFile,
			UsersFile:     c.Catalog.UsersFile,
			SeedOnStart:   c.Catalog.SeedOnStart,
		},
		Metrics: container.MetricsConfig{
			Enabled: c.Metrics.Enabled,
			Path:    c.Metrics.Path,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			Mode:            c.Server.Mode,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
	}
}
