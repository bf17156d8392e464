package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ordena-ai/ordena-backend/api/routes"
	"github.com/ordena-ai/ordena-backend/internal/audit"
	"github.com/ordena-ai/ordena-backend/internal/catalog"
	"github.com/ordena-ai/ordena-backend/internal/credit"
	"github.com/ordena-ai/ordena-backend/internal/ledger"
	"github.com/ordena-ai/ordena-backend/internal/orders"
	"github.com/ordena-ai/ordena-backend/internal/routing"
	"github.com/ordena-ai/ordena-backend/internal/stores"
	"github.com/ordena-ai/ordena-backend/pkg/config"
	"github.com/ordena-ai/ordena-backend/pkg/db"
	"github.com/ordena-ai/ordena-backend/pkg/logger"
	"github.com/ordena-ai/ordena-backend/pkg/metrics"
	"github.com/ordena-ai/ordena-backend/pkg/migrate"
	"github.com/ordena-ai/ordena-backend/pkg/outbox"
	"github.com/ordena-ai/ordena-backend/pkg/pubsub"
	"github.com/ordena-ai/ordena-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	auditRecorder, err := audit.NewRecorder(audit.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		os.Exit(1)
	}

	storesService, err := stores.NewService(stores.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create store service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	creditService, err := credit.NewService(credit.ServiceParams{
		Repo:    credit.NewRepository(dbClient.DB()),
		Ledger:  ledger.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Outbox:  outboxSvc,
		Audit:   auditRecorder,
		Lock:    cfg.CreditLock,
		Metrics: metrics.NewCreditLockMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credit service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Outbox:  outboxSvc,
		Audit:   auditRecorder,
		Credit:  creditService,
		Catalog: catalogService,
		Stores:  storesService,
		Routing: routing.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	routingService, err := routing.NewService(routing.ServiceParams{
		Repo:    routing.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Outbox:  outboxSvc,
		Orders:  ordersService,
		Vendors: storesService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create routing service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:  cfg,
			Logger:  logg,
			DB:      dbClient,
			Redis:   redisClient,
			PubSub:  pubsubClient,
			Orders:  ordersService,
			Credit:  creditService,
			Routing: routingService,
			Stores:  storesService,
			Catalog: catalogService,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server stopped")
}
