package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/claim-workflow/internal/config"
	"github.com/kursadbilgin/claim-workflow/internal/handler"
	"github.com/kursadbilgin/claim-workflow/internal/infra/postgresql"
	"github.com/kursadbilgin/claim-workflow/internal/infra/postgresql/migrations"
	"github.com/kursadbilgin/claim-workflow/internal/observability"
	"github.com/kursadbilgin/claim-workflow/internal/queue"
	"github.com/kursadbilgin/claim-workflow/internal/repository"
	"github.com/kursadbilgin/claim-workflow/internal/service"
	"github.com/kursadbilgin/claim-workflow/internal/transport"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger("auditworker", cfg.LogLevel)
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

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer mq.Close()

	metrics := observability.NewMetrics()

	consumer, err := service.NewAuditConsumer(
		repository.NewGormAttemptRepo(db),
		queue.NewRabbitMQConsumer(mq, cfg.AuditWorkerConcurrency, logger),
		cfg.AuditWorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("audit consumer initialization failed", zap.Error(err))
	}
	consumer.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:               "claim-workflow-auditworker",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	handler.RegisterHealthRoutes(app,
		handler.PostgresCheck(sqlDB),
		handler.ReadinessCheck{Name: "rabbitmq", Check: mq.Check},
	)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.WorkerMetricsPort)); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	defer app.Shutdown() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("audit worker started",
		zap.Int("concurrency", cfg.AuditWorkerConcurrency),
		zap.Int("metricsPort", cfg.WorkerMetricsPort),
	)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("audit worker stopped with error", zap.Error(err))
		return
	}

	logger.Info("audit worker stopped")
}
