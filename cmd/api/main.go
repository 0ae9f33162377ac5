package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/claim-workflow/internal/audit"
	"github.com/kursadbilgin/claim-workflow/internal/config"
	"github.com/kursadbilgin/claim-workflow/internal/handler"
	"github.com/kursadbilgin/claim-workflow/internal/infra/postgresql"
	"github.com/kursadbilgin/claim-workflow/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/claim-workflow/internal/infra/redis"
	"github.com/kursadbilgin/claim-workflow/internal/observability"
	"github.com/kursadbilgin/claim-workflow/internal/queue"
	"github.com/kursadbilgin/claim-workflow/internal/repository"
	"github.com/kursadbilgin/claim-workflow/internal/service"
	"github.com/kursadbilgin/claim-workflow/internal/transport"
	"github.com/kursadbilgin/claim-workflow/internal/webhook"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger("api", cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer mq.Close()

	metrics := observability.NewMetrics()

	denials, err := infraredis.NewDenialTracker(rdb, cfg.DenialAlertThreshold, cfg.DenialWindow(), logger)
	if err != nil {
		logger.Fatal("denial tracker initialization failed", zap.Error(err))
	}

	sinks := []audit.Sink{
		queue.NewActivitySink(queue.NewRabbitMQPublisher(mq)),
		denials,
	}
	if cfg.PaymentWebhookURL != "" {
		reconciliation, err := webhook.NewReconciliationSink(cfg.PaymentWebhookURL)
		if err != nil {
			logger.Fatal("payment webhook initialization failed", zap.Error(err))
		}
		sinks = append(sinks, reconciliation)
	}
	emitter := audit.NewEmitter(logger, metrics, audit.EmitterOptions{
		SinkTimeout: cfg.AuditSinkTimeout(),
		BufferSize:  cfg.AuditBufferSize,
	}, sinks...)

	rate, err := cfg.Commission()
	if err != nil {
		logger.Fatal("invalid commission rate", zap.Error(err))
	}

	workflow, err := service.NewWorkflowService(
		repository.NewGormClaimRepo(db),
		emitter,
		service.WorkflowOptions{CommissionRate: rate, BulkConcurrency: cfg.BulkWorkerConcurrency},
		logger,
	)
	if err != nil {
		logger.Fatal("workflow service initialization failed", zap.Error(err))
	}
	workflow.SetMetrics(metrics)

	payments, err := service.NewPaymentService(workflow, logger)
	if err != nil {
		logger.Fatal("payment service initialization failed", zap.Error(err))
	}

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.TransitionRateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:      "claim-workflow",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app,
		handler.PostgresCheck(sqlDB),
		handler.RedisCheck(rdb),
		handler.ReadinessCheck{Name: "rabbitmq", Check: mq.Check},
	)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterClaimRoutes(app, handler.RouteDeps{
		Workflow: workflow,
		Payments: payments,
		Limiter:  limiter,
		Metrics:  metrics,
		Logger:   logger,
	}); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()
	logger.Info("claim-workflow api started", zap.Int("port", cfg.APIPort))

	select {
	case <-ctx.Done():
	case err := <-listenErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("http server stopped", zap.Error(err))
		}
	}

	logger.Info("shutting down api")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := emitter.Close(drainCtx); err != nil {
		logger.Error("audit emitter drain failed", zap.Error(err))
	}
}
