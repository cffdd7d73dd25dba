package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/containerflow/pkg/logger"
)

// RetentionJobName identifies the history purge job.
const RetentionJobName = "history-retention"

const (
	defaultRetentionDays    = 30
	defaultRetentionTimeout = 30 * time.Second
)

type historyPurger interface {
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
	Remaining(ctx context.Context) (int64, error)
}

type RetentionJobParams struct {
	Logger *logger.Logger
	Purger historyPurger
	Days   int

	// Timeout bounds each database call made by the job.
	Timeout time.Duration
}

// NewRetentionJob builds the daily history retention job.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("history purger required")
	}
	days := params.Days
	if days <= 0 {
		days = defaultRetentionDays
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultRetentionTimeout
	}
	return &retentionJob{logg: params.Logger, purger: params.Purger, days: days, timeout: timeout}, nil
}

type retentionJob struct {
	logg    *logger.Logger
	purger  historyPurger
	days    int
	timeout time.Duration
}

func (j *retentionJob) Name() string { return RetentionJobName }

func (j *retentionJob) Run(ctx context.Context) error {
	purgeCtx, cancel := context.WithTimeout(ctx, j.timeout)
	deleted, err := j.purger.PurgeOlderThan(purgeCtx, j.days)
	cancel()
	if err != nil {
		return fmt.Errorf("history retention: %w", err)
	}
	fields := map[string]any{
		"retention_days": j.days,
		"rows_deleted":   deleted,
	}
	countCtx, cancel := context.WithTimeout(ctx, j.timeout)
	remaining, err := j.purger.Remaining(countCtx)
	cancel()
	if err != nil {
		j.logg.Warn(j.logg.WithField(ctx, "error", err.Error()), "failed to count remaining history")
	} else {
		fields["rows_remaining"] = remaining
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "history retention cleanup complete")
	return nil
}
