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

	"github.com/angelmondragon/containerflow/api/controllers"
	"github.com/angelmondragon/containerflow/api/routes"
	"github.com/angelmondragon/containerflow/internal/cron"
	"github.com/angelmondragon/containerflow/internal/history"
	"github.com/angelmondragon/containerflow/internal/reconcile"
	"github.com/angelmondragon/containerflow/internal/requests"
	"github.com/angelmondragon/containerflow/pkg/config"
	"github.com/angelmondragon/containerflow/pkg/db"
	"github.com/angelmondragon/containerflow/pkg/erp"
	"github.com/angelmondragon/containerflow/pkg/instance"
	"github.com/angelmondragon/containerflow/pkg/logger"
	"github.com/angelmondragon/containerflow/pkg/metrics"
	"github.com/angelmondragon/containerflow/pkg/migrate"
	"github.com/angelmondragon/containerflow/pkg/redis"
	"github.com/angelmondragon/containerflow/pkg/shift"
)

const shutdownTimeout = 30 * time.Second

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
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	var (
		redisClient *redis.Client
		redisPinger controllers.Pinger
		statusStore reconcile.StatusStore = reconcile.NewMemoryStatusStore()
		newLock     func() (reconcile.Lock, error)
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisPinger = redisClient

		store, err := reconcile.NewRedisStatusStore(redisClient, redisClient.StatusKey("reconcile"))
		if err != nil {
			logg.Error(context.Background(), "failed to create status store", err)
			os.Exit(1)
		}
		statusStore = store

		if cfg.Scheduler.DistributedLock {
			lockKey := redisClient.LockKey(reconcile.JobName)
			newLock = func() (reconcile.Lock, error) {
				return cron.NewRedisLock(redisClient, lockKey, 0)
			}
		}
	} else {
		logg.Warn(context.Background(), "redis not configured; cycle status is process-local")
	}

	erpClient, err := erp.NewClient(cfg.ERP)
	if err != nil {
		logg.Error(context.Background(), "failed to create erp client", err)
		os.Exit(1)
	}

	plantLoc, err := cfg.Analytics.Location()
	if err != nil {
		logg.Error(context.Background(), "failed to resolve plant timezone", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reconcileMetrics := metrics.NewReconcileMetrics(registry)

	requestsRepo := requests.NewRepository(dbClient.DB())
	historyRepo := history.NewRepository(dbClient.DB())

	requestService, err := requests.NewService(requests.ServiceParams{
		Repo:                   requestsRepo,
		Catalog:                erpClient,
		ExcludedLocationPrefix: cfg.ERP.ExcludedLocationPrefix,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create requests service", err)
		os.Exit(1)
	}

	transitioner, err := history.NewTransitioner(history.TransitionerParams{
		DB:       dbClient,
		History:  historyRepo,
		Requests: requestsRepo,
		Logger:   logg,
		Metrics:  reconcileMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create history transitioner", err)
		os.Exit(1)
	}

	analytics, err := history.NewAnalytics(history.AnalyticsParams{
		Repo:           historyRepo,
		Classifier:     shift.NewForLocation(plantLoc),
		WindowDays:     cfg.Retention.Days,
		TestWorkcenter: cfg.Analytics.TestWorkcenter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create history analytics", err)
		os.Exit(1)
	}

	purger, err := history.NewPurger(history.PurgerParams{DB: dbClient, History: historyRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create history purger", err)
		os.Exit(1)
	}

	engine, err := reconcile.NewEngine(reconcile.EngineParams{
		ERP:               erpClient,
		Requests:          requestsRepo,
		Resolver:          transitioner,
		Gate:              reconcile.NewRateGate(cfg.ERP.LookupInterval),
		Status:            statusStore,
		Metrics:           reconcileMetrics,
		Logger:            logg,
		NewLock:           newLock,
		ERPTimeout:        cfg.ERP.RequestTimeout,
		ListTimeout:       cfg.DB.OperationTimeout,
		TransitionTimeout: cfg.Scheduler.TransitionTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile engine", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    instance.ID(),
		"serviceKind": cfg.Service.Kind,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:       cfg,
			Logger:       logg,
			DB:           dbClient,
			Redis:        redisPinger,
			Gatherer:     registry,
			Engine:       engine,
			ERP:          erpClient,
			Requests:     requestService,
			Transitioner: transitioner,
			Analytics:    analytics,
			Purger:       purger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
