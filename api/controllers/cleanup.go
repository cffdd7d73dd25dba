package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/containerflow/api/responses"
	"github.com/angelmondragon/containerflow/internal/reconcile"
	"github.com/angelmondragon/containerflow/internal/requests"
	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
	"github.com/angelmondragon/containerflow/pkg/logger"
)

type cleanupRunner interface {
	RunManual(ctx context.Context) reconcile.Result
}

type cycleStatusReader interface {
	LatestStatus(ctx context.Context) (*reconcile.CycleStatus, bool, error)
}

type productionLocator interface {
	ProductionLocations(ctx context.Context) ([]string, error)
}

type requestSummarizer interface {
	Summary(ctx context.Context) (*requests.Summary, error)
}

type cleanupStatusResponse struct {
	Available bool                   `json:"available"`
	LastCycle *reconcile.CycleStatus `json:"last_cycle"`
}

type cleanupLogsResponse struct {
	ProductionLocations      []string   `json:"production_locations"`
	ProductionLocationsError *string    `json:"production_locations_error,omitempty"`
	TotalActiveRequests      int64      `json:"total_active_requests"`
	OldestRequest            *time.Time `json:"oldest_request"`
	NewestRequest            *time.Time `json:"newest_request"`
	SystemTime               time.Time  `json:"system_time"`
}

// CleanupManual runs one manual_cleanup cycle and returns its result. Skipped
// and failed cycles are reported in the body, not as HTTP errors.
func CleanupManual(engine cleanupRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile engine unavailable"))
			return
		}
		responses.WriteSuccess(w, engine.RunManual(r.Context()))
	}
}

func CleanupStatus(store cycleStatusReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "status store unavailable"))
			return
		}
		status, ok, err := store.LatestStatus(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cycle status"))
			return
		}
		responses.WriteSuccess(w, cleanupStatusResponse{Available: ok, LastCycle: status})
	}
}

// CleanupLogs reports what the next cycle would see: the production set and
// the ledger span. An ERP failure is reported inline.
func CleanupLogs(erp productionLocator, summaries requestSummarizer, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if summaries == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		summary, err := summaries.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := cleanupLogsResponse{
			ProductionLocations: []string{},
			TotalActiveRequests: summary.ActiveRequests,
			OldestRequest:       summary.Oldest,
			NewestRequest:       summary.Newest,
			SystemTime:          now().UTC(),
		}
		if erp != nil {
			locations, err := erp.ProductionLocations(r.Context())
			if err != nil {
				msg := err.Error()
				resp.ProductionLocationsError = &msg
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "error", msg), "production locations unavailable")
				}
			} else {
				resp.ProductionLocations = locations
			}
		}
		responses.WriteSuccess(w, resp)
	}
}
