package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/oa-approval/internal/application/catalog"
	"github.com/garyjia/oa-approval/internal/application/dispatcher"
	"github.com/garyjia/oa-approval/internal/application/emitter"
	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/application/service"
	"github.com/garyjia/oa-approval/internal/application/workflow"
	"github.com/garyjia/oa-approval/internal/infrastructure/directory"
	infraLark "github.com/garyjia/oa-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/oa-approval/internal/infrastructure/metrics"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/memory"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/oa-approval/internal/infrastructure/worker"
	"github.com/garyjia/oa-approval/pkg/database"
	"github.com/garyjia/oa-approval/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ApplicationBundle holds the application services built on the repositories.
type ApplicationBundle struct {
	Dispatcher    dispatcher.Dispatcher
	Emitter       *emitter.Emitter
	Catalog       catalog.Catalog
	Notifications service.NotificationService
	Engine        workflow.Engine
}

// ApplicationDeps holds dependencies for the application services.
type ApplicationDeps struct {
	Repos     *RepositoryBundle
	Directory port.Directory
	Metrics   port.Metrics
	AdminRole string
	Sync      bool
	Logger    *zap.Logger
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Repos     *RepositoryBundle
	Directory port.Directory
	Sender    port.MessageSender
	Metrics   port.Metrics
	LarkCfg   *LarkConfig
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideDatabase opens the SQLite database and applies the embedded
// migrations when AutoMigrate is set.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dbWrapper, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		migrator := database.NewMigrator(dbWrapper, logger)
		applied, err := migrator.RunMigrations(sqlite.Migrations())
		if err != nil {
			dbWrapper.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Database migrations applied", zap.Int("count", applied))
	}

	return &DatabaseBundle{
		SqlDB:          dbWrapper.DB,
		TransactionMgr: sqlite.NewDB(dbWrapper.DB, logger),
	}, nil
}

// ProvideRepositories creates the SQLite-backed repositories.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Workflows:     repository.NewWorkflowRepository(db, logger),
		Requests:      repository.NewRequestRepository(db, logger),
		Tasks:         repository.NewTaskRepository(db, logger),
		Events:        repository.NewEventRepository(db, logger),
		Notifications: repository.NewNotificationRepository(db, logger),
		Users:         repository.NewUserRepository(db, logger),
		Tx:            db,
	}, nil
}

// ProvideMemoryRepositories creates repositories over a process-local store.
func ProvideMemoryRepositories() *RepositoryBundle {
	store := memory.NewStore()
	return &RepositoryBundle{
		Workflows:     store.Workflows(),
		Requests:      store.Requests(),
		Tasks:         store.Tasks(),
		Events:        store.Events(),
		Notifications: store.Notifications(),
		Users:         store.Users(),
		Tx:            store,
	}
}

// ProvideDirectory creates the directory adapter over the user repository.
func ProvideDirectory(cfg *DirectoryConfig, users port.UserRepository, logger *zap.Logger) (*directory.Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("directory config is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	return directory.New(users, cfg.Timeout, logger.Named("directory")), nil
}

// ProvideMetrics creates the Prometheus collector, or nil when disabled.
func ProvideMetrics(cfg *MetricsConfig) *metrics.Collector {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return metrics.NewCollector()
}

// ProvideLarkMessenger creates the Lark IM sender, or nil when Lark is disabled.
func ProvideLarkMessenger(cfg *LarkConfig, logger *zap.Logger) (port.MessageSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if !cfg.Enabled {
		logger.Info("Lark delivery disabled")
		return nil, nil
	}

	larkCfg := infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}
	if !larkCfg.Enabled() {
		return nil, fmt.Errorf("lark credentials are required when lark is enabled")
	}

	client := infraLark.NewSDKClient(larkCfg, logger.Named("lark"))
	return infraLark.NewMessenger(client, logger.Named("lark")), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(NewLoggerAdapter(logger.Named("dispatcher")))), nil
}

// ProvideApplication wires the catalog, the notification fan-out and the
// workflow engine. The notification service is subscribed on the dispatcher.
func ProvideApplication(deps *ApplicationDeps) (*ApplicationBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("directory is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	m := deps.Metrics
	if m == nil {
		m = port.NopMetrics{}
	}
	repos := deps.Repos

	disp, err := ProvideDispatcher(deps.Logger)
	if err != nil {
		return nil, err
	}

	notifications := service.NewNotificationService(
		repos.Notifications,
		repos.Requests,
		deps.Directory,
		repos.Tx,
		deps.AdminRole,
		NewLoggerAdapter(deps.Logger.Named("notifications")),
	)
	notifications.Register(disp)

	emitterOpts := []emitter.Option{emitter.WithDispatcher(disp), emitter.WithMetrics(m)}
	if deps.Sync {
		emitterOpts = append(emitterOpts, emitter.WithSynchronousPublish())
	}
	em := emitter.New(repos.Events, emitterOpts...)

	cat := catalog.NewCatalog(repos.Workflows, repos.Requests, repos.Tx, NewLoggerAdapter(deps.Logger.Named("catalog")))

	engine := workflow.NewEngine(
		workflow.Repositories{
			Requests: repos.Requests,
			Tasks:    repos.Tasks,
			Events:   repos.Events,
			Tx:       repos.Tx,
		},
		cat,
		deps.Directory,
		em,
		NewLoggerAdapter(deps.Logger.Named("engine")),
		workflow.WithPayloadValidator(utils.NewPayloadValidator()),
		workflow.WithMetrics(m),
		workflow.WithAdminRole(deps.AdminRole),
	)

	return &ApplicationBundle{
		Dispatcher:    disp,
		Emitter:       em,
		Catalog:       cat,
		Notifications: notifications,
		Engine:        engine,
	}, nil
}

// ProvideWorkers creates the worker manager. The delivery worker is only
// registered when an external sender is configured.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(deps.Logger.Named("workers"))
	if deps.Sender == nil {
		return manager, nil
	}

	cfg := worker.DeliveryWorkerConfig{
		PollInterval: deps.WorkerCfg.DeliveryPollInterval,
		BatchSize:    deps.WorkerCfg.DeliveryBatchSize,
		MaxAttempts:  deps.WorkerCfg.DeliveryMaxAttempts,
	}
	if deps.LarkCfg != nil {
		cfg.SendTimeout = deps.LarkCfg.APITimeout
	}

	manager.Register(worker.NewNotificationDeliveryWorker(
		cfg,
		deps.Repos.Notifications,
		deps.Directory,
		deps.Sender,
		deps.Metrics,
		deps.Logger.Named("delivery"),
	))
	return manager, nil
}
