package setup

import (
	"context"
	"fmt"
	"log"

	"github.com/robalyx/bailiff/internal/database"
	"github.com/robalyx/bailiff/internal/database/dbretry"
	"github.com/robalyx/bailiff/internal/document"
	"github.com/robalyx/bailiff/internal/redis"
	"github.com/robalyx/bailiff/internal/setup/config"
	"github.com/robalyx/bailiff/internal/setup/telemetry"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
type App struct {
	Config       *config.Config        // Application configuration
	Logger       *zap.Logger           // Main application logger
	DBLogger     *zap.Logger           // Database-specific logger
	DB           database.Client       // Database connection pool, nil unless postgres storage is used
	RedisManager *redis.Manager        // Redis connection manager
	Documents    document.ListingStore // Guild document storage
	Locker       *document.Locker      // Serializes document writers in this process
	LogManager   *telemetry.Manager    // Log management system
	tracing      bool                  // Whether tracing must be flushed on cleanup
}

// Option adjusts how the application is initialized.
type Option func(*options)

type options struct {
	skipMigrations bool
}

// WithoutMigrations leaves the database schema untouched on startup.
func WithoutMigrations() Option {
	return func(o *options) {
		o.skipMigrations = true
	}
}

// InitializeApp bootstraps all application dependencies in order.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string, opts ...Option) (*App, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return InitializeWithConfig(ctx, cfg, serviceType, logDir, opts...)
}

// InitializeWithConfig bootstraps the application from an already loaded config.
func InitializeWithConfig(
	ctx context.Context, cfg *config.Config, serviceType telemetry.ServiceType, logDir string, opts ...Option,
) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	tracing := telemetry.SetupTracing(serviceType, &cfg.Common.Telemetry)

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug, tracing)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	dbretry.Configure(&cfg.Common.Retry)

	app := &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		RedisManager: redis.NewManager(&cfg.Common.Redis, logger),
		Locker:       document.NewLocker(),
		LogManager:   logManager,
		tracing:      tracing,
	}

	switch cfg.Common.Storage.Backend {
	case config.StoragePostgres:
		db, err := database.NewConnection(ctx, &cfg.Common.PostgreSQL, app.DBLogger, !o.skipMigrations)
		if err != nil {
			app.Cleanup(ctx)
			return nil, err
		}
		app.DB = db
		app.Documents = db.Model().Document()

	case config.StorageRedis:
		client, err := app.RedisManager.GetClient(redis.DocumentDBIndex)
		if err != nil {
			app.Cleanup(ctx)
			return nil, err
		}
		app.Documents = redis.NewDocumentStore(client, logger)

	case config.StorageMemory:
		logger.Warn("Using in-memory document storage, all data is lost on exit")
		app.Documents = document.NewMemory()

	default:
		app.Cleanup(ctx)
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStorageBackend, cfg.Common.Storage.Backend)
	}

	logger.Info("Application initialized",
		zap.String("storage", cfg.Common.Storage.Backend),
		zap.Bool("tracing", tracing))

	return app, nil
}

// Cleanup shuts down all components in reverse initialization order.
// Errors are logged so every component gets a cleanup attempt.
func (s *App) Cleanup(ctx context.Context) {
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
	}

	s.RedisManager.Close()

	if s.tracing {
		if err := telemetry.ShutdownTracing(ctx); err != nil {
			log.Printf("Failed to flush traces: %v", err)
		}
	}

	// Sync buffered logs last
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}
}
