package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/containerflow/api/controllers"
	"github.com/angelmondragon/containerflow/api/middleware"
	"github.com/angelmondragon/containerflow/internal/history"
	"github.com/angelmondragon/containerflow/internal/reconcile"
	"github.com/angelmondragon/containerflow/internal/requests"
	"github.com/angelmondragon/containerflow/pkg/config"
	"github.com/angelmondragon/containerflow/pkg/logger"
)

// Params carries the collaborators exposed by the diagnostics API. Redis is
// optional; a nil Gatherer disables /metrics.
type Params struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           controllers.Pinger
	Redis        controllers.Pinger
	Gatherer     prometheus.Gatherer
	Engine       *reconcile.Engine
	ERP          reconcile.LocationSource
	Requests     requests.Service
	Transitioner *history.Transitioner
	Analytics    *history.Analytics
	Purger       *history.Purger
	Now          func() time.Time
}

func NewRouter(p Params) http.Handler {
	logg := p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, logg, p.DB, p.Redis))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cleanup", func(r chi.Router) {
			r.Post("/manual", controllers.CleanupManual(p.Engine, logg))
			r.Get("/status", controllers.CleanupStatus(p.Engine, logg))
			r.Get("/logs", controllers.CleanupLogs(p.ERP, p.Requests, p.Now, logg))
		})

		r.Route("/requests", func(r chi.Router) {
			r.Get("/", controllers.RequestsList(p.Requests, logg))
			r.Post("/", controllers.RequestSubmit(p.Requests, logg))
			r.Delete("/{serialNo}", controllers.RequestDelete(p.Transitioner, logg))
		})
		r.Get("/containers", controllers.ContainersAvailable(p.Requests, logg))

		r.Route("/history", func(r chi.Router) {
			r.Get("/", controllers.HistoryList(p.Analytics, logg))
			r.Delete("/", controllers.HistoryClear(p.Purger, logg))
			r.Get("/stats", controllers.HistoryStats(p.Analytics, logg))
			r.Get("/export", controllers.HistoryExport(p.Analytics, p.Now, logg))
		})
	})

	return r
}
