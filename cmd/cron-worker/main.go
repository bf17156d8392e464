package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ordena-ai/ordena-backend/internal/audit"
	"github.com/ordena-ai/ordena-backend/internal/catalog"
	"github.com/ordena-ai/ordena-backend/internal/credit"
	"github.com/ordena-ai/ordena-backend/internal/cron"
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
	"github.com/ordena-ai/ordena-backend/pkg/redis"
)

const lockKeyFormat = "ordena:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	systemActor, err := uuid.Parse(cfg.Cron.SystemActorID)
	if err != nil {
		logg.Error(context.Background(), "invalid system actor id", err)
		os.Exit(1)
	}

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

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

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

	creditRepo := credit.NewRepository(dbClient.DB())
	creditService, err := credit.NewService(credit.ServiceParams{
		Repo:    creditRepo,
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

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:    ordersRepo,
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

	reservationExpiry, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:       logg,
		DB:           dbClient,
		Reservations: creditRepo,
		Machine:      ordersService,
		Outbox:       outboxSvc,
		SystemActor:  systemActor,
		TTLHours:     int(cfg.Cron.ReservationTTL.Hours()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation expiry job", err)
		os.Exit(1)
	}

	routingTimeout, err := cron.NewRoutingTimeoutJob(cron.RoutingTimeoutJobParams{
		Logger:       logg,
		DB:           dbClient,
		Orders:       ordersRepo,
		Machine:      ordersService,
		Routing:      routingService,
		Outbox:       outboxSvc,
		SystemActor:  systemActor,
		TimeoutHours: int(cfg.Cron.RoutingTTL.Hours()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create routing timeout job", err)
		os.Exit(1)
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		Retention:   int(cfg.Cron.OutboxRetention.Hours() / 24),
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(reservationExpiry, routingTimeout, outboxRetention)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
