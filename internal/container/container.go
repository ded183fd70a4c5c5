package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/oa-approval/internal/application/catalog"
	"github.com/garyjia/oa-approval/internal/application/dispatcher"
	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/application/service"
	"github.com/garyjia/oa-approval/internal/application/workflow"
	"github.com/garyjia/oa-approval/internal/infrastructure/export"
	"github.com/garyjia/oa-approval/internal/infrastructure/metrics"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/oa-approval/internal/infrastructure/seed"
	"github.com/garyjia/oa-approval/internal/infrastructure/worker"
	httpserver "github.com/garyjia/oa-approval/internal/interfaces/http"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle
	directory    port.Directory

	// Infrastructure - External
	metrics   *metrics.Collector
	messenger port.MessageSender
	exporter  port.ReportExporter

	// Application
	app    *ApplicationBundle
	seeder *seed.Seeder

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	opened atomic.Bool
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Workflows     port.WorkflowRepository
	Requests      port.RequestRepository
	Tasks         port.TaskRepository
	Events        port.EventRepository
	Notifications port.NotificationRepository
	Users         port.UserRepository
	Tx            port.TransactionManager
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() or Open() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Open initializes every component except the background workers.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Directory
// 3. External adapters (metrics, Lark, exporter)
// 4. Application services
// 5. Catalog seed
func (c *Container) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open(ctx)
}

// Start opens the container and starts the background workers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}
	if err := c.open(ctx); err != nil {
		return err
	}

	// Step 6: Initialize and start workers
	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started", zap.Int("count", c.workers.GetWorkerCount()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) open(ctx context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.opened.Load() {
		return nil
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("driver", c.config.Database.Driver))

	// Step 2: Directory
	dir, err := ProvideDirectory(&c.config.Directory, c.repositories.Users, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize directory: %w", err)
	}
	c.directory = dir

	// Step 3: Initialize external adapters
	if err := c.initExternal(); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	// Step 4: Initialize application services
	if err := c.initApplication(); err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	c.logger.Info("Application services initialized")

	// Step 5: Seed the catalog
	if c.config.Catalog.SeedOnStart {
		res, err := c.seeder.SeedFiles(c.ctx, c.config.Catalog.UsersFile, c.config.Catalog.WorkflowsFile)
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		c.logger.Info("Catalog seeded", zap.Int("users", res.Users), zap.Int("workflows", res.Workflows))
	}

	c.opened.Store(true)
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Stop workers
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Step 2: Close dispatcher, waiting for in-flight notification fan-out
	if c.app != nil && c.app.Dispatcher != nil {
		if err := c.app.Dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 3: Close database
	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized and workers run.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	// Check database
	switch {
	case c.config.Database.Driver == DriverMemory:
		set("database", c.repositories != nil, "in-memory")
	case c.sqlDB == nil:
		set("database", false, "not initialized")
	default:
		if err := c.sqlDB.PingContext(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	// Check workers
	switch {
	case c.workers == nil:
		set("workers", false, "not initialized")
	case c.workers.GetWorkerCount() == 0:
		set("workers", true, "no workers configured")
	default:
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()))
	}

	if c.app != nil {
		set("engine", true, "")
	} else {
		set("engine", false, "not initialized")
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	if c.config.Database.Driver == DriverMemory {
		c.repositories = ProvideMemoryRepositories()
		return nil
	}

	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		c.sqlDB.Close()
		return err
	}

	c.repositories = repos
	return nil
}

// initExternal initializes metrics, the Lark messenger and the exporter.
func (c *Container) initExternal() error {
	c.metrics = ProvideMetrics(&c.config.Metrics)

	messenger, err := ProvideLarkMessenger(&c.config.Lark, c.logger)
	if err != nil {
		return err
	}
	c.messenger = messenger
	c.exporter = export.NewXLSXExporter()
	return nil
}

// metricsPort keeps a nil collector from becoming a non-nil interface.
func (c *Container) metricsPort() port.Metrics {
	if c.metrics == nil {
		return port.NopMetrics{}
	}
	return c.metrics
}

// initApplication wires dispatcher, catalog, notifications and engine.
func (c *Container) initApplication() error {
	app, err := ProvideApplication(&ApplicationDeps{
		Repos:     c.repositories,
		Directory: c.directory,
		Metrics:   c.metricsPort(),
		AdminRole: c.config.Directory.AdminRole,
		Sync:      c.config.Engine.SynchronousNotifications,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.app = app
	c.seeder = seed.NewSeeder(app.Catalog, c.repositories.Users, c.logger.Named("seed"))
	return nil
}

// initWorkers initializes and starts all background workers using providers.
func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Repos:     c.repositories,
		Directory: c.directory,
		Sender:    c.messenger,
		Metrics:   c.metricsPort(),
		LarkCfg:   &c.config.Lark,
		WorkerCfg: &c.config.Worker,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// HTTPServer builds the HTTP adapter over the container's services.
func (c *Container) HTTPServer() (*httpserver.Server, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.app == nil {
		return nil, fmt.Errorf("container is not open")
	}

	cfg := httpserver.ServerConfig{
		Host:            c.config.Server.Host,
		Port:            c.config.Server.Port,
		ReadTimeout:     c.config.Server.ReadTimeout,
		WriteTimeout:    c.config.Server.WriteTimeout,
		ShutdownTimeout: c.config.Server.ShutdownTimeout,
		Mode:            c.config.Server.Mode,
	}
	deps := httpserver.Dependencies{
		Engine:        c.app.Engine,
		Catalog:       c.app.Catalog,
		Notifications: c.app.Notifications,
		Directory:     c.directory,
		Exporter:      c.exporter,
		AdminRole:     c.config.Directory.AdminRole,
	}
	if c.metrics != nil {
		cfg.MetricsPath = c.config.Metrics.Path
		deps.Metrics = c.metrics.Handler()
	}

	return httpserver.NewServer(cfg, deps, NewLoggerAdapter(c.logger.Named("http"))), nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	if c.repositories == nil {
		return nil
	}
	return c.repositories.Tx
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Directory returns the user directory.
func (c *Container) Directory() port.Directory {
	return c.directory
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.app.Dispatcher
}

// Engine returns the workflow engine.
func (c *Container) Engine() workflow.Engine {
	return c.app.Engine
}

// Catalog returns the workflow catalog.
func (c *Container) Catalog() catalog.Catalog {
	return c.app.Catalog
}

// Notifications returns the notification service.
func (c *Container) Notifications() service.NotificationService {
	return c.app.Notifications
}

// Exporter returns the report exporter.
func (c *Container) Exporter() port.ReportExporter {
	return c.exporter
}

// Seeder returns the catalog seeder.
func (c *Container) Seeder() *seed.Seeder {
	return c.seeder
}

// Metrics returns the Prometheus collector, nil when disabled.
func (c *Container) Metrics() *metrics.Collector {
	return c.metrics
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces of
// the application and interface layers.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

// NewLoggerAdapter wraps logger for packages that log with key-value pairs.
func NewLoggerAdapter(logger *zap.Logger) *zapLoggerAdapter {
	return &zapLoggerAdapter{logger: logger}
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
