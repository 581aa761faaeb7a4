package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appevent "github.com/fieldops/stockledger/internal/application/event"
	appinv "github.com/fieldops/stockledger/internal/application/inventory"
	"github.com/fieldops/stockledger/internal/application/notification"
	apprequisition "github.com/fieldops/stockledger/internal/application/requisition"
	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/infrastructure/cache"
	"github.com/fieldops/stockledger/internal/infrastructure/config"
	"github.com/fieldops/stockledger/internal/infrastructure/event"
	"github.com/fieldops/stockledger/internal/infrastructure/lock"
	"github.com/fieldops/stockledger/internal/infrastructure/logger"
	"github.com/fieldops/stockledger/internal/infrastructure/notify"
	"github.com/fieldops/stockledger/internal/infrastructure/numbering"
	"github.com/fieldops/stockledger/internal/infrastructure/persistence"
	"github.com/fieldops/stockledger/internal/infrastructure/scheduler"
	"github.com/fieldops/stockledger/internal/infrastructure/storage"
	"github.com/fieldops/stockledger/internal/infrastructure/telemetry"
	"github.com/fieldops/stockledger/internal/interfaces/http/handler"
	"github.com/fieldops/stockledger/internal/interfaces/http/middleware"
	"github.com/fieldops/stockledger/internal/interfaces/http/openapi"
	"github.com/fieldops/stockledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
		InitialFields: map[string]string{
			"service": cfg.App.Name,
			"env":     cfg.App.Env,
			"version": version,
		},
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.App.Name,
		ServiceVersion:    version,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsEnabled:    cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()
	log = providers.BridgeLogger(log)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeAddress,
		ApplicationName: cfg.App.Name,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		_ = profiler.Stop()
	}()
	if profiler.IsEnabled() && cfg.Telemetry.SpanProfiles {
		providers.EnableSpanProfiles()
	}

	log.Info("Starting stock ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log,
		logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:            cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		DBName:             cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Idempotency store, plus the Redis client shared by the poll lock and change broadcasts
	idempotencyStore, redisClient, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
	}

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	scope := persistence.NewGormTransactionScope(db.DB,
		event.NewOutboxPublisher(serializer, event.WithMaxRetries(cfg.Event.MaxRetries)),
		persistence.WithLockTimeout(cfg.Ledger.LockTimeout),
	)

	numbers, err := numbering.NewSnowflakeGenerator(cfg.App.NodeID)
	if err != nil {
		log.Fatal("Failed to create document number generator", zap.Error(err))
	}

	ledgerService := appinv.NewLedgerService(scope, numbers,
		inventory.NewWastageChecker(cfg.Ledger.WastageReasonMinLength), log)
	catalogService := appinv.NewCatalogService(scope, log)
	queryService := appinv.NewQueryService(scope)
	stockRequestService := apprequisition.NewStockRequestService(scope, ledgerService, numbers, log)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	outboxService := appevent.NewOutboxService(outboxRepo, log)

	// Event handlers run after commit, fed by the outbox processor
	eventBus := event.NewInMemoryEventBus(log)
	notifier := notify.NewLogNotifier(log)
	var broadcaster notification.ChangeBroadcaster = notify.NewLogBroadcaster(log)
	if redisClient != nil {
		broadcaster = notify.NewRedisBroadcaster(redisClient, notify.DefaultChangeChannel, log)
	}
	var subscribers []*event.IdempotentHandler
	subscribe := func(name string, h shared.EventHandler) {
		wrapped := event.NewIdempotentHandler(name, h, idempotencyStore, log)
		subscribers = append(subscribers, wrapped)
		eventBus.Subscribe(wrapped, h.EventTypes()...)
	}
	subscribe("stock_received_notifier", notification.NewStockReceivedHandler(notifier, log))
	subscribe("inventory_changed_broadcaster", notification.NewInventoryChangedHandler(broadcaster, log))
	subscribe("stock_request_notifier", notification.NewStockRequestHandler(notifier, log))

	ledgerMetrics, err := telemetry.NewLedgerMetrics(providers.Meter("stockledger"))
	if err != nil {
		log.Fatal("Failed to register ledger metrics", zap.Error(err))
	}
	subscribe("ledger_metrics", ledgerMetrics)

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
		for _, sub := range subscribers {
			log.Info("Event subscriber totals", zap.String("subscriber", sub.Name()), zap.Any("stats", sub.Stats()))
		}
	}()

	// Replicas coordinate outbox polling and daily jobs through Redis when it is available
	var pollLocker event.PollLocker
	if redisClient != nil {
		pollLocker = lock.NewRedisLocker(redisClient)
	}

	if cfg.Event.ProcessorEnabled {
		processor := event.NewOutboxProcessor(outboxRepo, eventBus, serializer, pollLocker, event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			PollLockTTL:      cfg.Event.PollLockTTL,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
			CleanupInterval:  time.Hour,
		}, log)
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := processor.Stop(stopCtx); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
	}

	if cfg.Ledger.AuditEnabled {
		hour, minute, err := scheduler.ParseCronSchedule(cfg.Ledger.AuditSchedule)
		if err != nil {
			log.Fatal("Invalid stock audit schedule", zap.Error(err))
		}
		var auditOpts []scheduler.StockAuditOption
		if cfg.Storage.Enabled {
			reports, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
			if err != nil {
				log.Fatal("Failed to configure report storage", zap.Error(err))
			}
			if err := reports.EnsureBucket(ctx); err != nil {
				log.Warn("Report bucket unavailable, audit reports will not be archived", zap.Error(err))
			} else {
				auditOpts = append(auditOpts, scheduler.WithReportArchiver(reports))
				log.Info("Stock audit reports archived to object storage", zap.String("bucket", reports.Bucket()))
			}
		}
		jobs := scheduler.NewScheduler(scheduler.DefaultSchedulerConfig(),
			scheduler.NewStockAuditExecutor(queryService, log, auditOpts...), log)
		if err := jobs.Start(ctx); err != nil {
			log.Fatal("Failed to start job scheduler", zap.Error(err))
		}
		defer func() {
			if err := jobs.Stop(context.Background()); err != nil {
				log.Error("Error stopping job scheduler", zap.Error(err))
			}
		}()

		trigger := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			Kind:   scheduler.JobKindStockAudit,
			Hour:   hour,
			Minute: minute,
		}, jobs, pollLocker, log)
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start stock audit trigger", zap.Error(err))
		}
		defer func() {
			if err := trigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping stock audit trigger", zap.Error(err))
			}
		}()
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]handler.HealthChecker{
		"database": handler.PingFunc(db.Ping),
	}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	tracing := middleware.DefaultTracingConfig()
	tracing.Enabled = cfg.Telemetry.HTTPTraceEnabled
	tracing.ServiceName = cfg.App.Name
	cors := middleware.DefaultCORSConfig()

	engineCfg := router.EngineConfig{
		Logger:         log,
		IdempotencyTTL: cfg.Idempotency.TTL,
		MaxBodyBytes:   cfg.HTTP.MaxBodySize,
		CORS:           cors,
		Tracing:        tracing,
	}
	if cfg.Idempotency.Enabled {
		engineCfg.Idempotency = idempotencyStore
	}

	engine := router.NewEngine(engineCfg, router.Handlers{
		Catalog:      handler.NewCatalogHandler(catalogService),
		Ledger:       handler.NewLedgerHandler(ledgerService),
		Query:        handler.NewQueryHandler(queryService),
		StockRequest: handler.NewStockRequestHandler(stockRequestService),
		Outbox:       handler.NewOutboxHandler(outboxService),
		System:       handler.NewSystemHandler(version, checks, log),
	})
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	if cfg.App.Env != "production" {
		openapi.Register(engine)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
