package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/mylittlestore/pos-backend/internal/analytics/router"
	"github.com/mylittlestore/pos-backend/internal/analytics/worker"
	"github.com/mylittlestore/pos-backend/internal/analytics/writer"
	"github.com/mylittlestore/pos-backend/pkg/bigquery"
	"github.com/mylittlestore/pos-backend/pkg/config"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/idempotency"
	"github.com/mylittlestore/pos-backend/pkg/pubsub"
	"github.com/mylittlestore/pos-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "analytics-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "analytics-worker"

	logg = logger.New(logger.Options{
		ServiceName: "analytics-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "analytics worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, bqClient.Close()) }()

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}

	processed, err := idempotency.NewLedger(redisClient, cfg.Eventing.ConsumerIdempotencyTTL, idempotency.ConsumerScope("analytics"))
	if err != nil {
		return err
	}

	salesWriter, err := writer.New(bqClient, writer.Config{SalesTable: cfg.BigQuery.SalesTable})
	if err != nil {
		return err
	}

	salesRouter, err := router.NewRouter(salesWriter, money.NewFormatter(cfg.Money.Currency, cfg.Money.Exponent), logg, nil)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	consumer, err := worker.NewConsumer(worker.ConsumerParams{
		Subscription: subscription,
		Handler:      salesRouter,
		Processed:    processed,
		Metrics:      metrics.NewConsumerMetrics(promRegistry),
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{Registry: promRegistry}),
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
		"env":          cfg.App.Env,
		"serviceKind":  cfg.Service.Kind,
		"subscription": cfg.PubSub.AnalyticsSubscription,
	})
	logg.Info(ctx, "analytics worker ready")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "analytics worker shutting down gracefully")
	return nil
}
