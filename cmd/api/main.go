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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/mylittlestore/pos-backend/api/controllers"
	"github.com/mylittlestore/pos-backend/api/routes"
	"github.com/mylittlestore/pos-backend/internal/items"
	"github.com/mylittlestore/pos-backend/internal/orderitems"
	"github.com/mylittlestore/pos-backend/internal/orders"
	"github.com/mylittlestore/pos-backend/internal/paymentmethods"
	"github.com/mylittlestore/pos-backend/internal/payments"
	"github.com/mylittlestore/pos-backend/internal/settlement"
	"github.com/mylittlestore/pos-backend/internal/stores"
	"github.com/mylittlestore/pos-backend/internal/storetables"
	squarewebhook "github.com/mylittlestore/pos-backend/internal/webhooks/square"
	"github.com/mylittlestore/pos-backend/pkg/config"
	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/idempotency"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
	"github.com/mylittlestore/pos-backend/pkg/migrate"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/redis"
	"github.com/mylittlestore/pos-backend/pkg/square"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
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
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	useCaseMetrics := metrics.NewUseCaseMetrics(registry)
	formatter := money.NewFormatter(cfg.Money.Currency, cfg.Money.Exponent)

	conn := dbClient.DB()
	storeRepo := stores.NewRepository(conn)
	tableRepo := storetables.NewRepository(conn)
	itemRepo := items.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	lineRepo := orderitems.NewRepository(conn)
	paymentRepo := payments.NewRepository(conn)
	methodRepo := paymentmethods.NewRepository(conn)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	storeService, err := stores.NewService(stores.ServiceParams{
		Repo:    storeRepo,
		Tx:      dbClient,
		Outbox:  outboxService,
		Metrics: useCaseMetrics,
	})
	if err != nil {
		return err
	}

	tableService, err := storetables.NewService(tableRepo, dbClient, useCaseMetrics)
	if err != nil {
		return err
	}

	itemService, err := items.NewService(itemRepo, dbClient, formatter, useCaseMetrics)
	if err != nil {
		return err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:    orderRepo,
		Stores:  storeRepo,
		Tables:  tableRepo,
		Items:   itemRepo,
		Tx:      dbClient,
		Outbox:  outboxService,
		Money:   formatter,
		Metrics: useCaseMetrics,
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	lineService, err := orderitems.NewService(orderitems.ServiceParams{
		Repo:    lineRepo,
		Orders:  orderRepo,
		Stores:  storeRepo,
		Items:   itemRepo,
		Tx:      dbClient,
		Outbox:  outboxService,
		Money:   formatter,
		Metrics: useCaseMetrics,
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:    paymentRepo,
		Orders:  orderRepo,
		Stores:  storeRepo,
		Tx:      dbClient,
		Outbox:  outboxService,
		Money:   formatter,
		Metrics: useCaseMetrics,
	})
	if err != nil {
		return err
	}

	settler, err := settlement.New(settlement.Params{
		Orders:   orderRepo,
		Payments: paymentRepo,
		Tables:   tableRepo,
		Outbox:   outboxService,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	methodParams := paymentmethods.ServiceParams{
		Repo:     methodRepo,
		Payments: paymentRepo,
		Orders:   orderRepo,
		Settler:  settler,
		Tx:       dbClient,
		Outbox:   outboxService,
		Locks:    redisClient,
		Money:    formatter,
		Metrics:  useCaseMetrics,
		Logger:   logg,
	}

	var squareClient *square.Client
	if cfg.FeatureFlags.CardTenders {
		squareClient, err = square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return err
		}
		methodParams.Square = squareClient
		methodParams.LocationID = cfg.Square.LocationID
	}

	methodService, err := paymentmethods.NewService(methodParams)
	if err != nil {
		return err
	}

	deps := routes.Deps{
		Pingers: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Requests:       redisClient,
		HTTPMetrics:    metrics.NewHTTPMetrics(registry),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Stores:         storeService,
		Tables:         tableService,
		Items:          itemService,
		Orders:         orderService,
		OrderItems:     lineService,
		Payments:       paymentService,
		PaymentMethods: methodService,
	}

	if squareClient != nil {
		webhookService, err := squarewebhook.NewService(squarewebhook.ServiceParams{
			PaymentMethods: methodService,
			Logger:         logg,
		})
		if err != nil {
			return err
		}
		deliveries, err := idempotency.NewLedger(redisClient, cfg.Eventing.ConsumerIdempotencyTTL, "square-webhook")
		if err != nil {
			return err
		}
		deps.SquareVerifier = squareClient
		deps.SquareWebhook = webhookService
		deps.SquareDeliveries = deliveries
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"card_tenders": squareClient != nil,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logg.Info(logCtx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
