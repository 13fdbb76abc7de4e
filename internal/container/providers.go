package container

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/image-annotation/internal/application/dispatcher"
	"github.com/garyjia/image-annotation/internal/application/port"
	"github.com/garyjia/image-annotation/internal/application/service"
	"github.com/garyjia/image-annotation/internal/application/workflow"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/garyjia/image-annotation/internal/domain/event"
	"github.com/garyjia/image-annotation/internal/infrastructure/export"
	"github.com/garyjia/image-annotation/internal/infrastructure/messaging"
	"github.com/garyjia/image-annotation/internal/infrastructure/persistence/repository"
	"github.com/garyjia/image-annotation/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/image-annotation/migrations"
	"github.com/garyjia/image-annotation/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database, applies pending migrations and wraps the
// connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(conn, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrationsFromDir(cfg.MigrationsDir)
	} else {
		err = migrator.RunMigrations(migrations.FS)
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(conn *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Tasks:       repository.NewTaskRepository(conn.DB, logger),
		Annotations: repository.NewAnnotationRepository(conn.DB, logger),
		Reviews:     repository.NewReviewRepository(conn.DB, logger),
		Completed:   repository.NewCompletedRepository(conn.DB, logger),
		Users:       repository.NewUserRepository(conn.DB, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher and subscribes the lifecycle log handler.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	disp := dispatcher.NewDispatcher(
		dispatcher.WithLogger(&LoggerAdapter{logger: logger.Named("dispatcher")}),
	)
	disp.SubscribeAll("lifecycle_log", lifecycleLogHandler(logger.Named("lifecycle")))

	return disp, nil
}

func lifecycleLogHandler(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		logger.Debug("Lifecycle event delivered",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.Int64("task_id", evt.TaskID),
			zap.Int64("actor_id", evt.ActorID),
			zap.String("from", evt.From.String()),
			zap.String("to", evt.To.String()))
		return nil
	}
}

// ProvideEventPublisher creates the Kafka publisher and subscribes it to every lifecycle event.
// It returns nil when no brokers are configured.
func ProvideEventPublisher(cfg *EventsConfig, disp dispatcher.Dispatcher, logger *zap.Logger) (port.EventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("events config is required")
	}
	// Brokers set through the environment arrive as one comma separated value
	brokers := messaging.SplitBrokers(strings.Join(cfg.KafkaBrokers, ","))
	if len(brokers) == 0 {
		logger.Info("No Kafka brokers configured, lifecycle events stay in process")
		return nil, nil
	}

	publisher, err := messaging.NewKafkaPublisher(messaging.KafkaConfig{
		Brokers:        brokers,
		Topic:          cfg.KafkaTopic,
		PublishTimeout: cfg.PublishTimeout,
	}, logger.Named("kafka"))
	if err != nil {
		return nil, err
	}

	disp.SubscribeAll("kafka_publisher", publisher.Publish)
	return publisher, nil
}

// EngineDeps holds the lifecycle engine's collaborators.
type EngineDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Config     *EngineConfig
	Logger     *zap.Logger
}

// ProvideEngine creates the lifecycle engine.
func ProvideEngine(deps *EngineDeps) (workflow.Engine, error) {
	if deps == nil {
		return nil, fmt.Errorf("engine dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("engine config is required")
	}

	labels := make(entity.LabelSet, 0, len(deps.Config.Labels))
	for _, l := range deps.Config.Labels {
		labels = append(labels, entity.Label(l))
	}

	return workflow.NewEngine(
		workflow.Repositories{
			Tasks:       deps.Repos.Tasks,
			Annotations: deps.Repos.Annotations,
			Reviews:     deps.Repos.Reviews,
			Completed:   deps.Repos.Completed,
			Users:       deps.Repos.Users,
		},
		deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(&LoggerAdapter{logger: deps.Logger.Named("engine")}),
		workflow.WithConfig(workflow.Config{
			Labels:           labels,
			OperationTimeout: deps.Config.OperationTimeout,
			DefaultPageSize:  deps.Config.DefaultPageSize,
			MaxPageSize:      deps.Config.MaxPageSize,
		}),
	), nil
}

// ProvideServices creates the user directory and the archive read services.
func ProvideServices(repos *RepositoryBundle, engineCfg *EngineConfig, logger *zap.Logger) (*ServiceBundle, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if engineCfg == nil {
		return nil, fmt.Errorf("engine config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &LoggerAdapter{logger: logger.Named("service")}

	return &ServiceBundle{
		Users: service.NewUserService(repos.Users, serviceLogger),
		Archive: service.NewArchiveService(
			repos.Annotations,
			repos.Completed,
			export.NewXLSXExporter(logger.Named("export")),
			service.PageLimits{Default: engineCfg.DefaultPageSize, Max: engineCfg.MaxPageSize},
			serviceLogger,
		),
	}, nil
}
