package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/mylittlestore/pos-backend/internal/cron"
	"github.com/mylittlestore/pos-backend/internal/items"
	"github.com/mylittlestore/pos-backend/internal/orders"
	"github.com/mylittlestore/pos-backend/internal/stores"
	"github.com/mylittlestore/pos-backend/internal/storetables"
	"github.com/mylittlestore/pos-backend/pkg/config"
	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
	"github.com/mylittlestore/pos-backend/pkg/migrate"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/redis"
)

const lockScopeFormat = "maintenance:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "maintenance-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "maintenance-worker"

	logg = logger.New(logger.Options{
		ServiceName: "maintenance-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "maintenance worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := prometheus.NewRegistry()
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	storeRepo := stores.NewRepository(conn)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		Stores:  storeRepo,
		Tables:  storetables.NewRepository(conn),
		Items:   items.NewRepository(conn),
		Tx:      dbClient,
		Outbox:  outbox.NewService(outboxRepo, logg),
		Money:   money.NewFormatter(cfg.Money.Currency, cfg.Money.Exponent),
		Metrics: metrics.NewUseCaseMetrics(registry),
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Repository:       outboxRepo,
		Retention:        cfg.Maintenance.OutboxRetention,
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return err
	}
	abandonedJob, err := cron.NewAbandonedOrderJob(cron.AbandonedOrderJobParams{
		Logger: logg,
		Finder: orders.NewAbandonedFinder(conn),
		Orders: orderService,
		After:  cfg.Maintenance.AbandonedOrderTTL,
	})
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, lockScope(cfg.App.Env), 0)
	if err != nil {
		return err
	}
	schedule := cron.NewSchedule()
	if err := schedule.Add(abandonedJob, cfg.Maintenance.AbandonedEvery); err != nil {
		return err
	}
	if err := schedule.Add(retentionJob, cfg.Maintenance.Interval); err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Schedule: schedule,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(registry),
	})
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, metricsServer.Shutdown(shutdownCtx))
	}()

	ctx = logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"serviceKind":    cfg.Service.Kind,
		"abandonedEvery": cfg.Maintenance.AbandonedEvery.String(),
		"retentionEvery": cfg.Maintenance.Interval.String(),
	})
	logg.Info(ctx, "starting maintenance worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "maintenance worker shutting down gracefully")
	return nil
}

func lockScope(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockScopeFormat, env)
}
