// Package container provides dependency injection and lifecycle management
// for the approval service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Directory configuration
	Directory DirectoryConfig

	// Engine configuration
	Engine EngineConfig

	// Lark API configuration
	Lark LarkConfig

	// Worker configuration
	Worker WorkerConfig

	// Catalog seed configuration
	Catalog CatalogConfig

	// Metrics configuration
	Metrics MetricsConfig

	// Server configuration
	Server ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is sqlite or memory
	Driver string

	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	BusyTimeout time.Duration

	// AutoMigrate applies the embedded migrations on start
	AutoMigrate bool
}

// DirectoryConfig holds user directory settings.
type DirectoryConfig struct {
	// Timeout bounds every directory lookup
	Timeout time.Duration

	// AdminRole is the role allowed to administer workflows and requests
	AdminRole string
}

// EngineConfig holds workflow engine settings.
type EngineConfig struct {
	SynchronousNotifications bool
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	Enabled   bool
	AppID     string
	AppSecret string
	BaseURL   string

	// APITimeout is the timeout for one message send
	APITimeout time.Duration
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	DeliveryPollInterval time.Duration
	DeliveryBatchSize    int
	DeliveryMaxAttempts  int
}

// CatalogConfig holds the seed files applied on start.
type CatalogConfig struct {
	WorkflowsFile string
	UsersFile     string
	SeedOnStart   bool
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// Mode is the gin mode: debug, release or test
	Mode string

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration

	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "data/approval.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
			AutoMigrate:     true,
		},
		Directory: DirectoryConfig{
			Timeout:   3 * time.Second,
			AdminRole: "admin",
		},
		Lark: LarkConfig{
			APITimeout: 10 * time.Second,
		},
		Worker: WorkerConfig{
			DeliveryPollInterval: 5 * time.Second,
			DeliveryBatchSize:    50,
			DeliveryMaxAttempts:  5,
		},
		Catalog: CatalogConfig{
			WorkflowsFile: "configs/workflows.yaml",
			UsersFile:     "configs/users.yaml",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Database drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Directory.AdminRole == "" {
		return fmt.Errorf("directory.admin_role is required")
	}

	// Validate Lark configuration
	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
	}

	return nil
}
