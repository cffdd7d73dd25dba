package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/containerflow/api/responses"
	"github.com/angelmondragon/containerflow/pkg/config"
	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
	"github.com/angelmondragon/containerflow/pkg/logger"
)

const readyCheckTimeout = 2 * time.Second

// Pinger is any dependency with a cheap liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Containerflow-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and, when configured, Redis. A nil
// redis pinger is reported as disabled.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP Pinger, redisP Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Containerflow-Env", cfg.App.Env)

		checks := map[string]string{
			"database": probe(r.Context(), dbP),
			"redis":    "disabled",
		}
		if redisP != nil {
			checks["redis"] = probe(r.Context(), redisP)
		}

		for _, state := range checks {
			if state != "ok" && state != "disabled" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeDependency, "dependency not ready").WithDetails(checks))
				return
			}
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return "unavailable"
	}
	ctx, cancel := context.WithTimeout(ctx, readyCheckTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return "unavailable"
	}
	return "ok"
}
