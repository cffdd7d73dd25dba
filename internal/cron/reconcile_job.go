package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/containerflow/internal/reconcile"
	"github.com/angelmondragon/containerflow/pkg/logger"
)

type reconciler interface {
	Reconcile(ctx context.Context) (reconcile.Result, error)
}

type ReconcileJobParams struct {
	Logger *logger.Logger
	Engine reconciler
}

// NewReconcileJob wraps the reconciliation engine as a scheduled job.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("reconcile engine required")
	}
	return &reconcileJob{logg: params.Logger, engine: params.Engine}, nil
}

type reconcileJob struct {
	logg   *logger.Logger
	engine reconciler
}

func (j *reconcileJob) Name() string { return reconcile.JobName }

func (j *reconcileJob) Run(ctx context.Context) error {
	res, err := j.engine.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("container reconcile: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked":              res.Checked,
		"cleaned":              res.Resolved,
		"soft_errors":          len(res.Errors),
		"production_locations": res.ProductionLocations,
	})
	j.logg.Info(logCtx, "container reconcile complete")
	return nil
}
