package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	token_adapter "property-import-service/internal/adapters/jwt"
	logger_adapter "property-import-service/internal/adapters/logger"
	metrics_adapter "property-import-service/internal/adapters/metrics"
	postgres_adapter "property-import-service/internal/adapters/postgres"
	rabbitmq_adapter "property-import-service/internal/adapters/rabbitmq"
	redis_adapter "property-import-service/internal/adapters/redis"
	"property-import-service/internal/adapters/rest"
	storage_adapter "property-import-service/internal/adapters/storage"
	"property-import-service/internal/configs"
	"property-import-service/internal/constants"
	"property-import-service/internal/contracts"
	"property-import-service/internal/core/port"
	"property-import-service/internal/core/usecase"
	"property-import-service/migrations"
	fluentlogger "property-import-service/pkg/fluent_logger"
	"property-import-service/pkg/postgres"
	"property-import-service/pkg/rabbitmq/rabbitmq_common"
	"property-import-service/pkg/rabbitmq/rabbitmq_consumer"
	"property-import-service/pkg/rabbitmq/rabbitmq_producer"
	pkgredis "property-import-service/pkg/redis"
	"property-import-service/pkg/s3"
	"property-import-service/schemas"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
)

// Mode какие компоненты поднимает процесс
type Mode string

const (
	ModeAPI    Mode = "api"
	ModeWorker Mode = "worker"
	ModeAll    Mode = "all"
)

func (m Mode) runsAPI() bool    { return m == ModeAPI || m == ModeAll }
func (m Mode) runsWorker() bool { return m == ModeWorker || m == ModeAll }

type namedListener struct {
	name     string
	listener port.EventListenerPort
}

// App – структура приложения
type App struct {
	config       *configs.AppConfig
	mode         Mode
	dbPool       *pgxpool.Pool
	redisClient  *goredis.Client
	connManager  *rabbitmq_common.ConnectionManager
	producer     *rabbitmq_producer.Publisher
	apiServer    *rest.Server
	listeners    []namedListener
	fluentClient *fluent.Fluent
	logger       port.LoggerPort
}

// NewApp Composition Root: все зависимости создаются и связываются здесь
func NewApp(mode Mode, envPath ...string) (*App, error) {
	switch mode {
	case ModeAPI, ModeWorker, ModeAll:
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	appConfig, err := configs.LoadConfig(envPath...)
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	baseLogger, fluentClient, err := newLogger(appConfig)
	if err != nil {
		return nil, err
	}
	baseLogger = baseLogger.WithFields(port.Fields{"mode": string(mode)})
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})

	app := &App{
		config:       appConfig,
		mode:         mode,
		fluentClient: fluentClient,
		logger:       appLogger,
	}
	if err := app.wire(baseLogger); err != nil {
		appLogger.Error("Failed to initialize application", err, nil)
		app.closeResources()
		return nil, err
	}
	return app, nil
}

// wire создает ресурсы по порядку; при ошибке вызывающий закрывает уже созданное
func (a *App) wire(baseLogger port.LoggerPort) error {
	cfg := a.config
	appLogger := a.logger
	ctx := context.Background()

	// --- 1. НИЗКОУРОВНЕВЫЕ ЗАВИСИМОСТИ ---
	dbPool, err := postgres.NewClient(ctx, postgres.Config{
		DatabaseURL: cfg.Database.URL,
		MaxConns:    int32(cfg.Database.MaxConns),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	a.dbPool = dbPool
	appLogger.Info("Successfully connected to PostgreSQL pool!", nil)

	redisClient, err := pkgredis.NewClient(ctx, pkgredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.redisClient = redisClient
	appLogger.Info("Successfully connected to Redis!", nil)

	fileStorage, err := newFileStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	appLogger.Info("File storage initialized.", port.Fields{"driver": cfg.Storage.Driver})

	connManagerBridge := rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"}))
	connManager, err := rabbitmq_common.NewConnectionManager(rabbitmq_common.Config{URL: cfg.RabbitMQ.URL}, connManagerBridge)
	if err != nil {
		return fmt.Errorf("failed to create connection manager: %w", err)
	}
	a.connManager = connManager
	appLogger.Info("RabbitMQ Connection Manager initialized.", nil)

	// --- 2. ИСХОДЯЩИЕ АДАПТЕРЫ ---
	ledger, err := redis_adapter.NewLedgerAdapter(redisClient)
	if err != nil {
		return fmt.Errorf("failed to create ledger adapter: %w", err)
	}
	propertyCache, err := redis_adapter.NewPropertyCacheAdapter(redisClient)
	if err != nil {
		return fmt.Errorf("failed to create property cache adapter: %w", err)
	}
	history, err := postgres_adapter.NewPostgresImportJobRepository(dbPool)
	if err != nil {
		return fmt.Errorf("failed to create import job repository: %w", err)
	}
	metrics := metrics_adapter.NewPrometheusAdapter()
	invalidator := usecase.NewCacheInvalidator(propertyCache, metrics)
	markFailedUseCase := usecase.NewMarkImportFailedUseCase(ledger, history, metrics, cfg.Import.TerminalTTL)

	serverDeps := rest.ServerDeps{
		Metrics:        metrics,
		MetricsHandler: metrics.Handler(),
	}

	// --- 3. API: intake, статус, свойства ---
	if a.mode.runsAPI() {
		producerCfg := importPublisherConfig(cfg)
		producerCfg.Logger = rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"}))
		producer, err := rabbitmq_producer.NewPublisher(producerCfg, connManager)
		if err != nil {
			return fmt.Errorf("failed to create event producer: %w", err)
		}
		a.producer = producer

		jobQueue, err := rabbitmq_adapter.NewImportJobPublisherAdapter(producer, constants.RoutingKeyImportJob, rabbitmq_adapter.DefaultRetryPolicy)
		if err != nil {
			return fmt.Errorf("failed to create job publisher: %w", err)
		}
		inspector, err := rabbitmq_adapter.NewQueueInspectorAdapter(connManager, constants.QueueImportJobs, constants.FinalDLQ)
		if err != nil {
			return fmt.Errorf("failed to create queue inspector: %w", err)
		}
		propertyRepo, err := postgres_adapter.NewPostgresPropertyRepository(dbPool)
		if err != nil {
			return fmt.Errorf("failed to create property repository: %w", err)
		}
		tokenService, err := token_adapter.NewTokenService(cfg.Auth.JWTSecret)
		if err != nil {
			return fmt.Errorf("failed to create token service: %w", err)
		}

		submitUseCase := usecase.NewSubmitImportUseCase(ledger, fileStorage, history, jobQueue, cfg.Import.QueuedTTL, cfg.Import.MaxUploadBytes)
		statusUseCase := usecase.NewGetImportStatusUseCase(ledger, history)
		statsUseCase := usecase.NewGetQueueStatsUseCase(inspector, history)
		retryUseCase := usecase.NewRetryFailedImportsUseCase(ledger, history, jobQueue, cfg.Import.QueuedTTL)
		listUseCase := usecase.NewListPropertiesUseCase(propertyRepo, propertyCache, cfg.Import.CacheTTL)
		updateUseCase := usecase.NewUpdatePropertyUseCase(propertyRepo, invalidator)
		deleteUseCase := usecase.NewDeletePropertyUseCase(propertyRepo, invalidator)
		appLogger.Info("API use cases initialized.", nil)

		serverDeps.Imports = rest.NewImportHandler(submitUseCase, statusUseCase, statsUseCase, retryUseCase, cfg.Import.MaxUploadBytes, usecase.DefaultRetryLimit)
		serverDeps.Properties = rest.NewPropertyHandler(listUseCase, updateUseCase, deleteUseCase)
		serverDeps.Verifier = tokenService
	}

	// --- 4. WORKER: consumer импорта и финальной DLQ ---
	if a.mode.runsWorker() {
		registry, err := contracts.NewRegistry(schemas.SchemasFS)
		if err != nil {
			return fmt.Errorf("failed to load message schemas: %w", err)
		}
		upserter, err := postgres_adapter.NewPropertyUpsertAdapter(dbPool)
		if err != nil {
			return fmt.Errorf("failed to create upsert adapter: %w", err)
		}

		processUseCase := usecase.NewProcessImportUseCase(ledger, fileStorage, upserter, history, invalidator, metrics, usecase.ImportWorkerConfig{
			BatchSize:   cfg.Import.BatchSize,
			LeaseTTL:    cfg.Import.LeaseTTL,
			TerminalTTL: cfg.Import.TerminalTTL,
		})
		appLogger.Info("Worker use cases initialized.", nil)

		importListener, err := rabbitmq_adapter.NewImportJobConsumerAdapter(importConsumerConfig(cfg), processUseCase, markFailedUseCase, registry, baseLogger, connManager)
		if err != nil {
			return fmt.Errorf("failed to create import job listener: %w", err)
		}
		a.listeners = append(a.listeners, namedListener{"Import Job Listener", importListener})

		dlqListener, err := rabbitmq_adapter.NewDLQConsumerAdapter(dlqConsumerConfig(cfg), markFailedUseCase, cfg.Import.DLQBatchSize, cfg.Import.DLQBatchWait, baseLogger, connManager)
		if err != nil {
			return fmt.Errorf("failed to create dead letter listener: %w", err)
		}
		a.listeners = append(a.listeners, namedListener{"Dead Letter Listener", dlqListener})
		appLogger.Info("Event listeners initialized.", port.Fields{"count": len(a.listeners)})
	}

	// в режиме worker сервер отдает только /healthz и /metrics
	a.apiServer = rest.NewServer(cfg.Rest.PORT, serverDeps, baseLogger)
	appLogger.Info("REST API server configured.", nil)
	return nil
}

// importConsumerConfig prefetch 1, ack после успеха, ретраи через wait-очередь и финальная DLQ
func importConsumerConfig(cfg *configs.AppConfig) rabbitmq_consumer.ConsumerConfig {
	return rabbitmq_consumer.ConsumerConfig{
		Config:       rabbitmq_common.Config{URL: cfg.RabbitMQ.URL},
		QueueName:    constants.QueueImportJobs,
		DeclareQueue: true,
		DurableQueue: true,
		QueueArgs: map[string]interface{}{
			"x-message-ttl": int32(cfg.Import.QueuedTTL.Milliseconds()),
		},
		ExchangeNameForBind:    constants.ImportsExchange,
		DeclareExchangeForBind: true,
		ExchangeTypeForBind:    "direct",
		DurableExchangeForBind: true,
		RoutingKeyForBind:      constants.RoutingKeyImportJob,
		PrefetchCount:          1,
		ConsumerTag:            "import-worker",

		EnableRetryMechanism: true,
		RetryExchange:        constants.ImportRetryExchange,
		RetryQueue:           constants.ImportRetryQueue,
		RetryTTL:             int(cfg.Import.RetryDelay.Milliseconds()),
		FinalDLXExchange:     constants.FinalDLXExchange,
		FinalDLQ:             constants.FinalDLQ,
		FinalDLQRoutingKey:   constants.FinalDLQRoutingKey,
		MaxRetries:           cfg.Import.MaxRetries,
	}
}

// importPublisherConfig объявляет import-queue с теми же аргументами, что и worker:
// api, запущенный раньше worker, не теряет задачи. Публикация с confirms и mandatory.
func importPublisherConfig(cfg *configs.AppConfig) rabbitmq_producer.PublisherConfig {
	consumerCfg := importConsumerConfig(cfg)
	return rabbitmq_producer.PublisherConfig{
		Config:                   rabbitmq_common.Config{URL: cfg.RabbitMQ.URL},
		ExchangeName:             constants.ImportsExchange,
		ExchangeType:             "direct",
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		BindQueue:                consumerCfg.QueueName,
		BindQueueArgs:            consumerCfg.MainQueueArgs(),
		BindRoutingKey:           consumerCfg.RoutingKeyForBind,
		Reliable:                 true,
	}
}

// dlqConsumerConfig очередь объявляет consumer импорта, здесь только чтение
func dlqConsumerConfig(cfg *configs.AppConfig) rabbitmq_consumer.ConsumerConfig {
	return rabbitmq_consumer.ConsumerConfig{
		Config:        rabbitmq_common.Config{URL: cfg.RabbitMQ.URL},
		QueueName:     constants.FinalDLQ,
		DeclareQueue:  true,
		DurableQueue:  true,
		PrefetchCount: cfg.Import.DLQBatchSize,
		ConsumerTag:   "import-dlq-reconciler",
	}
}

func newFileStorage(ctx context.Context, cfg configs.StorageConfig) (port.FileStoragePort, error) {
	if cfg.Driver == "s3" {
		client, err := s3.NewClient(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return storage_adapter.NewS3FileStorage(client, cfg.S3Bucket)
	}
	return storage_adapter.NewLocalFileStorage(cfg.LocalDir)
}

// newLogger stdout (slog + tint) и опционально Fluent Bit
func newLogger(cfg *configs.AppConfig) (port.LoggerPort, *fluent.Fluent, error) {
	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    parseLogLevel(cfg.StdoutLogger.Level),
		IsJSON:   cfg.StdoutLogger.JSON,
		UseColor: !cfg.StdoutLogger.JSON,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if cfg.FluentBit.Enabled {
		var err error
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      cfg.FluentBit.Host,
			Port:      cfg.FluentBit.Port,
			TagPrefix: cfg.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(cfg.FluentBit.Level))
		if err != nil {
			fluentClient.Close()
			return nil, nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		if fluentClient != nil {
			fluentClient.Close()
		}
		return nil, nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{"service_name": cfg.AppName})
	baseLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": cfg.FluentBit.Enabled,
	})
	return baseLogger, fluentClient, nil
}

// Run запускает компоненты и управляет их жизненным циклом
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.apiServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("Error during API server shutdown", err, nil)
		}

		// listener сам выходит по отмене контекста; текущая задача дочитывается до ошибки
		// ctx и не подтверждается, брокер вернет ее другому воркеру
		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()
		a.logger.Info("All background processes finished.", nil)

		a.closeResources()
	}()

	a.logger.Info("Application is starting...", nil)

	errorsCh := make(chan error, len(a.listeners)+1)

	startListener := func(name string, listener port.EventListenerPort) {
		defer wg.Done()
		listenerLogger := a.logger.WithFields(port.Fields{"listener_name": name})
		listenerLogger.Info("Starting listener...", nil)

		if err := listener.Start(appCtx); err != nil && !errors.Is(err, context.Canceled) {
			listenerLogger.Error("Listener stopped with an unexpected error", err, nil)
			errorsCh <- fmt.Errorf("%s error: %w", name, err)
		} else {
			listenerLogger.Info("Listener stopped gracefully due to context cancellation.", nil)
		}
	}

	for _, l := range a.listeners {
		wg.Add(1)
		go startListener(l.name, l.listener)
	}

	go func() {
		if err := a.apiServer.Start(); err != nil {
			errorsCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	a.logger.Info("Application running. Waiting for signals or server error...", nil)
	var runErr error
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
	case runErr = <-errorsCh:
		a.logger.Error("A critical component failed, shutting down", runErr, nil)
	}

	cancelApp()
	return runErr
}

// closeResources в обратном порядку создания; nil-поля пропускаются
func (a *App) closeResources() {
	for _, l := range a.listeners {
		if err := l.listener.Close(); err != nil {
			a.logger.Error("Error closing listener", err, port.Fields{"listener_name": l.name})
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("Error closing event producer", err, nil)
		}
	}
	if a.connManager != nil {
		if err := a.connManager.Close(); err != nil {
			a.logger.Error("Error closing RabbitMQ connection", err, nil)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("Error closing Redis client", err, nil)
		}
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.logger.Info("PostgreSQL pool closed.", nil)
	}

	a.logger.Info("Application shut down gracefully.", nil)

	if a.fluentClient != nil {
		if err := a.fluentClient.Close(); err != nil {
			// fluent может быть уже недоступен
			fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
		}
	}
}

// Migrate применяет встроенные SQL-миграции и выходит
func Migrate(ctx context.Context, envPath ...string) ([]string, error) {
	appConfig, err := configs.LoadConfig(envPath...)
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}
	pool, err := postgres.NewClient(ctx, postgres.Config{DatabaseURL: appConfig.Database.URL, MaxConns: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	return postgres.ApplyMigrations(ctx, pool, migrations.FS)
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
