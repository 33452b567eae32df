package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/washpoint/washpoint-backend/api/routes"
	"github.com/washpoint/washpoint-backend/internal/cleaners"
	"github.com/washpoint/washpoint-backend/internal/dispatch"
	"github.com/washpoint/washpoint-backend/internal/finance"
	"github.com/washpoint/washpoint-backend/internal/geofence"
	"github.com/washpoint/washpoint-backend/internal/jobs"
	"github.com/washpoint/washpoint-backend/internal/notifications"
	"github.com/washpoint/washpoint-backend/internal/payments"
	"github.com/washpoint/washpoint-backend/internal/realtime"
	"github.com/washpoint/washpoint-backend/internal/sweeper"
	"github.com/washpoint/washpoint-backend/pkg/config"
	"github.com/washpoint/washpoint-backend/pkg/db"
	"github.com/washpoint/washpoint-backend/pkg/logger"
	"github.com/washpoint/washpoint-backend/pkg/metrics"
	"github.com/washpoint/washpoint-backend/pkg/migrate"
	"github.com/washpoint/washpoint-backend/pkg/redis"
	"github.com/washpoint/washpoint-backend/pkg/stripe"
)

const (
	webhookIdempotencyTTL = 24 * time.Hour
	shutdownTimeout       = 10 * time.Second
	sweepLockKeyFormat    = "wp:sweeper:lock:%s"
)

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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}

	hub := realtime.NewHub(logg)
	hub.Start(context.Background())
	defer hub.Stop()

	notifier, err := notifications.NewService(hub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	calculator, err := finance.NewCalculator(cfg.Fees)
	if err != nil {
		logg.Error(context.Background(), "failed to create fee calculator", err)
		os.Exit(1)
	}

	jobsRepo := jobs.NewRepository(dbClient.DB())
	cleanersRepo := cleaners.NewRepository(dbClient.DB())
	financeRepo := finance.NewRepository(dbClient.DB())
	geofenceRepo := geofence.NewRepository(dbClient.DB())

	dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)

	resolver, err := geofence.NewResolver(geofenceRepo, dispatchMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create geofence resolver", err)
		os.Exit(1)
	}

	engine, err := dispatch.NewEngine(dispatch.EngineParams{
		Jobs:     jobsRepo,
		Cleaners: cleanersRepo,
		Resolver: resolver,
		Notifier: notifier,
		Metrics:  dispatchMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch engine", err)
		os.Exit(1)
	}

	jobsService, err := jobs.NewService(jobs.ServiceParams{
		Repo:       jobsRepo,
		Cleaners:   cleanersRepo,
		Finance:    financeRepo,
		Tx:         dbClient,
		Provider:   stripeClient,
		Calculator: calculator,
		Notifier:   notifier,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create jobs service", err)
		os.Exit(1)
	}

	cleanersService, err := cleaners.NewService(cleanersRepo, geofenceRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cleaners service", err)
		os.Exit(1)
	}

	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Jobs:       jobsRepo,
		Cleaners:   cleanersRepo,
		Finance:    financeRepo,
		Tx:         dbClient,
		Calculator: calculator,
		Dispatch:   engine,
		Notifier:   notifier,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconciler", err)
		os.Exit(1)
	}

	webhookGuard, err := payments.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	// The expiry sweep runs inside the api process: its notifications go
	// through the same hub the websocket clients are attached to, and its
	// metrics are served on the same /metrics endpoint. The redis lock
	// serializes the sweep across replicas.
	sweeperMetrics := metrics.NewSweeperMetrics(prometheus.DefaultRegisterer)
	sweepLock, err := sweeper.NewRedisLock(redisClient, sweepLockKey(cfg.App.Env), cfg.Sweeper.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}
	expiryJob, err := sweeper.NewExpiryJob(sweeper.ExpiryJobParams{
		Logger:      logg,
		DB:          dbClient,
		Jobs:        jobsRepo,
		Finance:     financeRepo,
		Provider:    stripeClient,
		Notifier:    notifier,
		Metrics:     sweeperMetrics,
		GraceWindow: cfg.Sweeper.GraceWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry job", err)
		os.Exit(1)
	}
	sweepService, err := sweeper.NewService(sweeper.ServiceParams{
		Logger:   logg,
		Registry: sweeper.NewRegistry(expiryJob),
		Lock:     sweepLock,
		Metrics:  sweeperMetrics,
		Interval: cfg.Sweeper.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctx := logg.WithFields(runCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	go func() {
		if err := sweepService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "sweeper stopped unexpectedly", err)
		}
	}()

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			jobsService,
			cleanersService,
			geofenceRepo,
			engine,
			reconciler,
			stripeClient,
			webhookGuard,
			hub,
		),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(context.Background(), "error shutting down api server", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(context.Background(), "api server shutting down gracefully")
}

func sweepLockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(sweepLockKeyFormat, env)
}
