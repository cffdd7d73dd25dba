package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

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
)

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
		locks       cron.LockFactory
		statusStore reconcile.StatusStore = reconcile.NewMemoryStatusStore()
	)
	if cfg.Redis.Enabled() {
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

		store, err := reconcile.NewRedisStatusStore(redisClient, redisClient.StatusKey("reconcile"))
		if err != nil {
			logg.Error(context.Background(), "failed to create status store", err)
			os.Exit(1)
		}
		statusStore = store
		if cfg.Scheduler.DistributedLock {
			locks = cron.NewRedisLockFactory(redisClient, redisClient.LockKey, 0)
		}
	} else {
		logg.Warn(context.Background(), "redis not configured; running without distributed job locks")
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
	cronMetrics := metrics.NewCronJobMetrics(registry)
	reconcileMetrics := metrics.NewReconcileMetrics(registry)

	requestsRepo := requests.NewRepository(dbClient.DB())
	historyRepo := history.NewRepository(dbClient.DB())

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

	// The cron service holds the job lock, so the engine gets none of its own.
	engine, err := reconcile.NewEngine(reconcile.EngineParams{
		ERP:               erpClient,
		Requests:          requestsRepo,
		Resolver:          transitioner,
		Gate:              reconcile.NewRateGate(cfg.ERP.LookupInterval),
		Status:            statusStore,
		Metrics:           reconcileMetrics,
		Logger:            logg,
		ERPTimeout:        cfg.ERP.RequestTimeout,
		ListTimeout:       cfg.DB.OperationTimeout,
		TransitionTimeout: cfg.Scheduler.TransitionTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile engine", err)
		os.Exit(1)
	}

	purger, err := history.NewPurger(history.PurgerParams{DB: dbClient, History: historyRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create history purger", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewReconcileJob(cron.ReconcileJobParams{Logger: logg, Engine: engine})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger:  logg,
		Purger:  purger,
		Days:    cfg.Retention.Days,
		Timeout: cfg.DB.OperationTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retention job", err)
		os.Exit(1)
	}

	jobs := cron.NewRegistry()
	jobs.Register(reconcileJob,
		cron.After(cfg.Scheduler.StartupDelay),
		cron.Every(cfg.Scheduler.ReconcileInterval),
	)
	jobs.Register(retentionJob,
		cron.DailyAt(cfg.Scheduler.RetentionHour, cfg.Scheduler.RetentionMinute, plantLoc),
	)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Locks:    locks,
		Metrics:  cronMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":                cfg.App.Env,
		"instance":           instance.ID(),
		"serviceKind":        cfg.Service.Kind,
		"reconcile_interval": cfg.Scheduler.ReconcileInterval.String(),
		"startup_delay":      cfg.Scheduler.StartupDelay.String(),
	})

	metricsServer := newMetricsServer(":"+cfg.App.Port, registry)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped unexpectedly", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func newMetricsServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
}
