package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/containerflow/internal/reconcile"
	"github.com/angelmondragon/containerflow/pkg/logger"
)

type fakeReconciler struct {
	res   reconcile.Result
	err   error
	calls int
}

func (f *fakeReconciler) Reconcile(context.Context) (reconcile.Result, error) {
	f.calls++
	return f.res, f.err
}

func TestReconcileJob(t *testing.T) {
	engine := &fakeReconciler{res: reconcile.Result{Checked: 4, Resolved: 1}}
	job, err := NewReconcileJob(ReconcileJobParams{Logger: logger.Nop(), Engine: engine})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != reconcile.JobName {
		t.Fatalf("unexpected name %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	engine.err = errors.New("production location fetch failed")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected skipped cycle to surface as job failure")
	}
	if engine.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", engine.calls)
	}
}

type fakePurger struct {
	days          int
	deleted       int64
	err           error
	remaining     int64
	countErr      error
	purgeDeadline time.Time
	countDeadline time.Time
}

func (f *fakePurger) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	f.days = days
	f.purgeDeadline, _ = ctx.Deadline()
	return f.deleted, f.err
}

func (f *fakePurger) Remaining(ctx context.Context) (int64, error) {
	f.countDeadline, _ = ctx.Deadline()
	return f.remaining, f.countErr
}

func TestRetentionJobDefaultsHorizon(t *testing.T) {
	purger := &fakePurger{deleted: 3, remaining: 10}
	job, err := NewRetentionJob(RetentionJobParams{Logger: logger.Nop(), Purger: purger})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if purger.days != 30 {
		t.Fatalf("expected 30 day horizon, got %d", purger.days)
	}
}

func TestRetentionJobBoundsDatabaseCalls(t *testing.T) {
	purger := &fakePurger{}
	job, err := NewRetentionJob(RetentionJobParams{Logger: logger.Nop(), Purger: purger, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	start := time.Now()
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	for name, deadline := range map[string]time.Time{"purge": purger.purgeDeadline, "count": purger.countDeadline} {
		if deadline.IsZero() {
			t.Fatalf("expected %s call to carry a deadline", name)
		}
		if deadline.After(start.Add(time.Minute + time.Second)) {
			t.Fatalf("%s deadline %v exceeds configured timeout", name, deadline)
		}
	}

	purger = &fakePurger{}
	job, _ = NewRetentionJob(RetentionJobParams{Logger: logger.Nop(), Purger: purger})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if purger.purgeDeadline.IsZero() {
		t.Fatal("expected default timeout when none configured")
	}
}

func TestRetentionJobErrors(t *testing.T) {
	purger := &fakePurger{err: errors.New("db down")}
	job, _ := NewRetentionJob(RetentionJobParams{Logger: logger.Nop(), Purger: purger, Days: 7})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected purge error")
	}

	purger.err = nil
	purger.countErr = errors.New("count failed")
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("count failure should only be logged: %v", err)
	}
	if purger.days != 7 {
		t.Fatalf("expected configured horizon, got %d", purger.days)
	}
}

func TestJobConstructorsValidate(t *testing.T) {
	if _, err := NewReconcileJob(ReconcileJobParams{}); err == nil {
		t.Fatal("expected reconcile job validation error")
	}
	if _, err := NewRetentionJob(RetentionJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected retention job validation error")
	}
}
