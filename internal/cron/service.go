package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/containerflow/pkg/logger"
	"github.com/angelmondragon/containerflow/pkg/metrics"
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.CronJobMetrics
	Now      func() time.Time
}

// Service fires registered jobs on their schedules. A trigger that arrives
// while the same job is still running is dropped, never queued.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	metrics  *metrics.CronJobMetrics
	now      func() time.Time

	mu      sync.Mutex
	running map[string]*sync.Mutex
	started bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
		now:      now,
		running:  map[string]*sync.Mutex{},
	}, nil
}

// Run starts the scheduler, blocks until ctx is canceled and then waits for
// in-flight jobs to return.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.Start(ctx)
	<-ctx.Done()
	s.logg.Info(ctx, "cron service context canceled")
	s.Stop()
	return nil
}

// Start launches one timer loop per entry. Calling Start again is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.group = &errgroup.Group{}
	for _, entry := range s.registry.Entries() {
		s.mutexFor(entry.Job.Name())
		entry := entry
		s.group.Go(func() error {
			s.loop(runCtx, entry)
			return nil
		})
	}
	s.logg.Info(s.logg.WithField(ctx, "entries", len(s.registry.Entries())), "cron service started")
}

// Stop cancels pending triggers and waits for running jobs. Safe to call
// more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, group := s.cancel, s.group
	s.mu.Unlock()

	cancel()
	_ = group.Wait()
}

func (s *Service) loop(ctx context.Context, entry Entry) {
	for {
		next, ok := entry.Schedule.Next(s.now())
		if !ok {
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.mu.Lock()
		group := s.group
		s.mu.Unlock()
		job := entry.Job
		group.Go(func() error {
			s.trigger(ctx, job)
			return nil
		})
	}
}

func (s *Service) mutexFor(job string) *sync.Mutex {
	m, ok := s.running[job]
	if !ok {
		m = &sync.Mutex{}
		s.running[job] = m
	}
	return m
}

// trigger runs job unless another run of it holds the local or distributed lock.
func (s *Service) trigger(ctx context.Context, job Job) {
	jobCtx := s.logg.WithJob(ctx, job.Name())

	s.mu.Lock()
	m := s.mutexFor(job.Name())
	s.mu.Unlock()
	if !m.TryLock() {
		s.logg.Info(jobCtx, "previous run still in progress; skipping trigger")
		s.metrics.IncSkipped(job.Name())
		return
	}
	defer m.Unlock()

	if s.locks != nil {
		lock, err := s.locks(job.Name())
		if err != nil {
			s.logg.Error(jobCtx, "failed to build job lock", err)
			s.metrics.IncFailure(job.Name())
			return
		}
		acquired, err := lock.Acquire(jobCtx)
		if err != nil {
			s.logg.Error(jobCtx, "failed to acquire job lock", err)
			s.metrics.IncFailure(job.Name())
			return
		}
		if !acquired {
			s.logg.Info(jobCtx, "another worker holds the job lock; skipping trigger")
			s.metrics.IncSkipped(job.Name())
			return
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(jobCtx)); err != nil {
				s.logg.Error(jobCtx, "failed to release job lock", err)
			}
		}()
	}

	s.runJob(jobCtx, job)
}

func (s *Service) runJob(ctx context.Context, job Job) {
	ctx = s.logg.WithField(ctx, "event", "cron.job")
	s.logg.Info(ctx, "job start")
	start := s.now()
	err := s.safeRun(ctx, job)
	duration := s.now().Sub(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	ctx = s.logg.WithField(ctx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	s.logg.Info(ctx, "job completed")
	s.metrics.IncSuccess(job.Name())
}

func (s *Service) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}
