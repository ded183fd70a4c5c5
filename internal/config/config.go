package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. APPROVAL_SERVER_PORT
const EnvPrefix = "APPROVAL"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or memory
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DirectoryConfig holds user directory configuration
type DirectoryConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	AdminRole string        `mapstructure:"admin_role"`
}

// EngineConfig holds workflow engine configuration
type EngineConfig struct {
	// SynchronousNotifications makes engine calls wait for notification fan-out
	SynchronousNotifications bool `mapstructure:"synchronous_notifications"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	AppID      string        `mapstructure:"app_id"`
	AppSecret  string        `mapstructure:"app_secret"`
	BaseURL    string        `mapstructure:"base_url"`
	APITimeout time.Duration `mapstructure:"api_timeout"`
}

// WorkerConfig holds notification delivery worker configuration
type WorkerConfig struct {
	DeliveryPollInterval time.Duration `mapstructure:"delivery_poll_interval"`
	DeliveryBatchSize    int           `mapstructure:"delivery_batch_size"`
	DeliveryMaxAttempts  int           `mapstructure:"delivery_max_attempts"`
}

// CatalogConfig holds seed files applied at startup
type CatalogConfig struct {
	WorkflowsFile string `mapstructure:"workflows_file"`
	UsersFile     string `mapstructure:"users_file"`
	SeedOnStart   bool   `mapstructure:"seed_on_start"`
}

// MetricsConfig holds Prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables. A .env file
// next to the working directory is applied first when present. An empty
// configPath runs on defaults and environment only.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/approval.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.auto_migrate", true)

	// Directory defaults
	v.SetDefault("directory.timeout", 3*time.Second)
	v.SetDefault("directory.admin_role", "admin")

	v.SetDefault("engine.synchronous_notifications", false)

	// Lark defaults
	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.api_timeout", 10*time.Second)

	// Worker defaults
	v.SetDefault("worker.delivery_poll_interval", 5*time.Second)
	v.SetDefault("worker.delivery_batch_size", 50)
	v.SetDefault("worker.delivery_max_attempts", 5)

	v.SetDefault("catalog.workflows_file", "configs/workflows.yaml")
	v.SetDefault("catalog.users_file", "configs/users.yaml")
	v.SetDefault("catalog.seed_on_start", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the unprefixed credential variables
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", EnvPrefix+"_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", EnvPrefix+"_LARK_APP_SECRET", "LARK_APP_SECRET")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver %q must be sqlite or memory", c.Database.Driver)
	}

	if c.Directory.AdminRole == "" {
		return fmt.Errorf("directory.admin_role is required")
	}

	// Validate Lark credentials
	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
	}

	return nil
}
