// Package reconcile compares the active request ledger with the ERP and
// moves requests whose containers reached production into history.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/containerflow/pkg/db/models"
	"github.com/angelmondragon/containerflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
	"github.com/angelmondragon/containerflow/pkg/logger"
)

// JobName identifies the reconciliation job in logs, metrics and locks.
const JobName = "container-reconcile"

const (
	defaultERPTimeout        = 60 * time.Second
	defaultListTimeout       = 30 * time.Second
	defaultTransitionTimeout = 30 * time.Second
)

// ErrInProgress is returned when another reconciliation holds the lock.
var ErrInProgress = pkgerrors.New(pkgerrors.CodeLocked, "reconciliation already in progress")

// Status is the outcome reported to diagnostic callers.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// LocationSource is the ERP surface the engine depends on.
type LocationSource interface {
	CurrentLocation(ctx context.Context, serialNo string) (string, bool, error)
	ProductionLocations(ctx context.Context) ([]string, error)
}

// ActiveLister lists the active ledger.
type ActiveLister interface {
	ListAll(ctx context.Context) ([]models.ActiveRequest, error)
}

// Resolver records a request in history and then removes it from the ledger.
type Resolver interface {
	Resolve(ctx context.Context, req models.ActiveRequest, fulfillmentType enums.FulfillmentType, currentLocation string) (*models.HistoryRecord, error)
}

// Lock excludes reconciliations running in other processes.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type cycleObserver interface {
	ObserveCycle(outcome string, checked, resolved, softErrors int, finishedAt time.Time)
}

// ResolvedContainer describes one request moved to history during a cycle.
type ResolvedContainer struct {
	ReqID        int64  `json:"req_id"`
	SerialNo     string `json:"serial_no"`
	PartNo       string `json:"part_no"`
	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
}

// Result summarizes one cycle. It is always populated, including for
// skipped cycles, so callers can render partial progress.
type Result struct {
	Status              Status                `json:"status"`
	Message             string                `json:"message"`
	FulfillmentType     enums.FulfillmentType `json:"fulfillment_type"`
	ProductionLocations int                   `json:"production_locations"`
	Checked             int                   `json:"checked_count"`
	Resolved            int                   `json:"cleaned_count"`
	ResolvedContainers  []ResolvedContainer   `json:"cleaned_containers"`
	Errors              []string              `json:"errors"`
	StartedAt           time.Time             `json:"started_at"`
	FinishedAt          time.Time             `json:"finished_at"`
}

type EngineParams struct {
	ERP               LocationSource
	Requests          ActiveLister
	Resolver          Resolver
	Gate              Gate
	Status            StatusStore
	Metrics           cycleObserver
	Logger            *logger.Logger
	NewLock           func() (Lock, error)
	ERPTimeout        time.Duration
	ListTimeout       time.Duration
	TransitionTimeout time.Duration
	Now               func() time.Time
}

// Engine runs reconciliation cycles. At most one cycle runs per Engine at a time.
type Engine struct {
	erp               LocationSource
	requests          ActiveLister
	resolver          Resolver
	gate              Gate
	status            StatusStore
	metrics           cycleObserver
	logg              *logger.Logger
	newLock           func() (Lock, error)
	erpTimeout        time.Duration
	listTimeout       time.Duration
	transitionTimeout time.Duration
	now               func() time.Time

	running sync.Mutex
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.ERP == nil {
		return nil, errors.New("erp client required")
	}
	if params.Requests == nil {
		return nil, errors.New("requests store required")
	}
	if params.Resolver == nil {
		return nil, errors.New("resolver required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	gate := params.Gate
	if gate == nil {
		gate = NewRateGate(0)
	}
	status := params.Status
	if status == nil {
		status = NewMemoryStatusStore()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		erp:               params.ERP,
		requests:          params.Requests,
		resolver:          params.Resolver,
		gate:              gate,
		status:            status,
		metrics:           params.Metrics,
		logg:              params.Logger,
		newLock:           params.NewLock,
		erpTimeout:        orDefault(params.ERPTimeout, defaultERPTimeout),
		listTimeout:       orDefault(params.ListTimeout, defaultListTimeout),
		transitionTimeout: orDefault(params.TransitionTimeout, defaultTransitionTimeout),
		now:               now,
	}, nil
}

// Reconcile runs one automated cycle. A skipped cycle returns the result
// together with a dependency error; per-container failures only appear in
// Result.Errors.
func (e *Engine) Reconcile(ctx context.Context) (Result, error) {
	return e.guarded(ctx, enums.FulfillmentAutoCleanup)
}

// RunManual runs the same cycle on demand for diagnostics. It never
// returns an error; failures are reported in the result.
func (e *Engine) RunManual(ctx context.Context) Result {
	res, err := e.guarded(ctx, enums.FulfillmentManualCleanup)
	switch {
	case err == nil:
	case errors.Is(err, ErrInProgress):
		res.Status = StatusSkipped
		res.Message = "reconciliation already in progress"
	case res.Status != StatusError && res.Status != StatusSuccess:
		res.Status = StatusError
		res.Message = err.Error()
		res.Errors = append(res.Errors, err.Error())
		e.logg.Error(ctx, "manual reconciliation failed", err)
	}
	return res
}

// LatestStatus returns the last published cycle status, if any.
func (e *Engine) LatestStatus(ctx context.Context) (*CycleStatus, bool, error) {
	return e.status.Latest(ctx)
}

func (e *Engine) guarded(ctx context.Context, fulfillmentType enums.FulfillmentType) (Result, error) {
	started := e.now().UTC()
	blocked := Result{
		Status:             StatusSkipped,
		FulfillmentType:    fulfillmentType,
		ResolvedContainers: []ResolvedContainer{},
		Errors:             []string{},
		StartedAt:          started,
		FinishedAt:         started,
	}

	if !e.running.TryLock() {
		return blocked, ErrInProgress
	}
	defer e.running.Unlock()

	if e.newLock != nil {
		lock, err := e.newLock()
		if err != nil {
			return e.skip(ctx, blocked, "reconcile lock unavailable", err)
		}
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			return e.skip(ctx, blocked, "reconcile lock unavailable", err)
		}
		if !acquired {
			return blocked, ErrInProgress
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				e.logg.Error(ctx, "failed to release reconcile lock", err)
			}
		}()
	}

	return e.run(ctx, fulfillmentType)
}

type candidate struct {
	req      models.ActiveRequest
	location string
}

func (e *Engine) run(ctx context.Context, fulfillmentType enums.FulfillmentType) (Result, error) {
	ctx = e.logg.WithField(ctx, "fulfillment_type", string(fulfillmentType))
	res := Result{
		FulfillmentType:    fulfillmentType,
		ResolvedContainers: []ResolvedContainer{},
		Errors:             []string{},
		StartedAt:          e.now().UTC(),
	}

	locCtx, cancel := context.WithTimeout(ctx, e.erpTimeout)
	locations, err := e.erp.ProductionLocations(locCtx)
	cancel()
	if err != nil {
		return e.skip(ctx, res, "production location fetch failed", err)
	}
	if len(locations) == 0 {
		return e.skip(ctx, res, "no production locations returned", nil)
	}
	production := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		production[loc] = struct{}{}
	}
	res.ProductionLocations = len(production)

	listCtx, cancel := context.WithTimeout(ctx, e.listTimeout)
	active, err := e.requests.ListAll(listCtx)
	cancel()
	if err != nil {
		return e.skip(ctx, res, "active request listing failed", err)
	}

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"active_requests":      len(active),
		"production_locations": len(production),
	}), "reconciliation cycle starting")

	marked := e.lookup(ctx, active, production, &res)

	var transitionErr error
	for _, c := range marked {
		if ctx.Err() != nil {
			break
		}
		if err := e.resolve(ctx, c, fulfillmentType); err != nil {
			transitionErr = multierr.Append(transitionErr, err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", c.req.SerialNo, err))
			continue
		}
		res.Resolved++
		res.ResolvedContainers = append(res.ResolvedContainers, ResolvedContainer{
			ReqID:        c.req.ReqID,
			SerialNo:     c.req.SerialNo,
			PartNo:       c.req.PartNo,
			FromLocation: c.req.Location,
			ToLocation:   c.location,
		})
	}

	if ctx.Err() != nil {
		res.Errors = append(res.Errors, "cycle interrupted: "+ctx.Err().Error())
	}

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("Checked %d active requests, cleaned %d", res.Checked, res.Resolved)
	res.FinishedAt = e.now().UTC()

	outcome := OutcomeOK
	if len(res.Errors) > 0 {
		outcome = OutcomeDegraded
	}
	e.publish(ctx, res, outcome, "")

	logCtx := e.logg.WithFields(ctx, map[string]any{
		"checked":     res.Checked,
		"cleaned":     res.Resolved,
		"soft_errors": len(res.Errors),
		"outcome":     string(outcome),
	})
	if transitionErr != nil {
		e.logg.Error(logCtx, "reconciliation finished with transition failures", transitionErr)
	} else {
		e.logg.Info(logCtx, "reconciliation cycle complete")
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// lookup checks each request's current ERP location one at a time through
// the gate and returns the requests now sitting in a production location.
func (e *Engine) lookup(ctx context.Context, active []models.ActiveRequest, production map[string]struct{}, res *Result) []candidate {
	var marked []candidate
	for _, req := range active {
		if err := e.gate.Wait(ctx); err != nil {
			return marked
		}
		res.Checked++

		rowCtx := e.logg.WithContainer(ctx, req.ReqID, req.SerialNo)
		lookupCtx, cancel := context.WithTimeout(ctx, e.erpTimeout)
		location, found, err := e.erp.CurrentLocation(lookupCtx, req.SerialNo)
		cancel()
		switch {
		case err != nil:
			e.logg.Warn(e.logg.WithField(rowCtx, "error", err.Error()), "erp lookup failed")
			res.Errors = append(res.Errors, fmt.Sprintf("%s: lookup failed: %v", req.SerialNo, err))
			continue
		case !found:
			e.logg.Warn(rowCtx, "container not found in erp")
			res.Errors = append(res.Errors, fmt.Sprintf("%s: not found in ERP", req.SerialNo))
			continue
		}

		if _, ok := production[location]; ok {
			e.logg.Debug(e.logg.WithField(rowCtx, "current_location", location), "container reached production")
			marked = append(marked, candidate{req: req, location: location})
		}
	}
	return marked
}

// resolve runs one transition on a context that outlives cancellation of
// the cycle so a started commit-then-delete always completes.
func (e *Engine) resolve(ctx context.Context, c candidate, fulfillmentType enums.FulfillmentType) error {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.transitionTimeout)
	defer cancel()
	_, err := e.resolver.Resolve(tctx, c.req, fulfillmentType, c.location)
	return err
}

func (e *Engine) skip(ctx context.Context, res Result, reason string, cause error) (Result, error) {
	res.Status = StatusError
	res.Message = reason
	if cause != nil {
		res.Message = fmt.Sprintf("%s: %v", reason, cause)
		res.Errors = append(res.Errors, res.Message)
	}
	res.FinishedAt = e.now().UTC()
	e.publish(ctx, res, OutcomeSkipped, res.Message)

	logCtx := e.logg.WithField(ctx, "reason", reason)
	if cause != nil {
		e.logg.Error(logCtx, "reconciliation cycle skipped", cause)
	} else {
		e.logg.Warn(logCtx, "reconciliation cycle skipped")
	}

	err := pkgerrors.New(pkgerrors.CodeDependency, "reconciliation skipped: "+reason)
	if cause != nil {
		err = pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "reconciliation skipped: "+reason)
	}
	return res, err
}

func (e *Engine) publish(ctx context.Context, res Result, outcome Outcome, reason string) {
	if e.metrics != nil {
		e.metrics.ObserveCycle(string(outcome), res.Checked, res.Resolved, len(res.Errors), res.FinishedAt)
	}

	status := CycleStatus{
		Outcome:             outcome,
		Reason:              strings.TrimSpace(reason),
		FulfillmentType:     res.FulfillmentType,
		ProductionLocations: res.ProductionLocations,
		Checked:             res.Checked,
		Resolved:            res.Resolved,
		SoftErrors:          len(res.Errors),
		StartedAt:           res.StartedAt,
		FinishedAt:          res.FinishedAt,
	}
	storeCtx := context.WithoutCancel(ctx)
	if outcome == OutcomeSkipped {
		if prev, ok, err := e.status.Latest(storeCtx); err == nil && ok {
			status.LastSuccessAt = prev.LastSuccessAt
		}
	} else {
		finished := res.FinishedAt
		status.LastSuccessAt = &finished
	}
	if err := e.status.Save(storeCtx, status); err != nil {
		e.logg.Error(ctx, "failed to publish reconcile status", err)
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
