package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/containerflow/pkg/db"
	"github.com/angelmondragon/containerflow/pkg/db/models"
	"github.com/angelmondragon/containerflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
	"github.com/angelmondragon/containerflow/pkg/logger"
	"github.com/angelmondragon/containerflow/pkg/timeutil"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ActiveStore is the slice of the request ledger the transition needs.
type ActiveStore interface {
	FindBySerial(ctx context.Context, serialNo string) (*models.ActiveRequest, error)
	DeleteByID(ctx context.Context, reqID int64) (int64, error)
}

type writeFailureCounter interface {
	IncHistoryWriteFailure()
}

type TransitionerParams struct {
	DB       txRunner
	History  Repository
	Requests ActiveStore
	Logger   *logger.Logger
	Metrics  writeFailureCounter
	Now      func() time.Time
}

// Transitioner moves requests from the active ledger into history. The
// active row is only deleted after its history record has committed.
type Transitioner struct {
	db       txRunner
	history  Repository
	requests ActiveStore
	logg     *logger.Logger
	metrics  writeFailureCounter
	now      func() time.Time
}

func NewTransitioner(params TransitionerParams) (*Transitioner, error) {
	if params.DB == nil {
		return nil, errors.New("db required")
	}
	if params.History == nil {
		return nil, errors.New("history repository required")
	}
	if params.Requests == nil {
		return nil, errors.New("requests store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Transitioner{
		db:       params.DB,
		history:  params.History,
		requests: params.Requests,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// Transition writes the history record for req and commits it. A request
// that already has a record is reported as success with the stored record.
func (t *Transitioner) Transition(ctx context.Context, req models.ActiveRequest, fulfillmentType enums.FulfillmentType, currentLocation string) (*models.HistoryRecord, error) {
	if !fulfillmentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid fulfillment type %q", fulfillmentType))
	}

	fulfilled := t.now().UTC()
	reqTime := timeutil.UTC(req.ReqTime)
	record := &models.HistoryRecord{
		ReqID:                      req.ReqID,
		SerialNo:                   req.SerialNo,
		PartNo:                     req.PartNo,
		Revision:                   req.Revision,
		Quantity:                   req.Quantity,
		Location:                   req.Location,
		DeliverTo:                  req.DeliverTo,
		ReqTime:                    reqTime,
		FulfilledTime:              fulfilled,
		FulfillmentDurationMinutes: timeutil.MinutesBetween(reqTime, fulfilled),
		FulfillmentType:            fulfillmentType,
		CurrentLocation:            currentLocation,
	}

	err := t.db.WithTx(ctx, func(tx *gorm.DB) error {
		return t.history.WithTx(tx).Insert(ctx, record)
	})
	if err == nil {
		ctx = t.logg.WithFields(ctx, map[string]any{
			"fulfillment_type": string(fulfillmentType),
			"current_location": currentLocation,
			"duration_minutes": record.FulfillmentDurationMinutes,
			"history_id":       record.HistoryID,
		})
		t.logg.Info(ctx, "request logged to history")
		return record, nil
	}

	if db.IsUniqueViolation(err, "") {
		existing, findErr := t.history.FindByReqID(ctx, req.ReqID)
		if findErr == nil {
			t.logg.Warn(ctx, "request already in history")
			return existing, nil
		}
	}

	if t.metrics != nil {
		t.metrics.IncHistoryWriteFailure()
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write history record")
}

// Resolve records req in history and then removes it from the active
// ledger. Any failure leaves the active row in place.
func (t *Transitioner) Resolve(ctx context.Context, req models.ActiveRequest, fulfillmentType enums.FulfillmentType, currentLocation string) (*models.HistoryRecord, error) {
	ctx = t.logg.WithContainer(ctx, req.ReqID, req.SerialNo)

	record, err := t.Transition(ctx, req, fulfillmentType, currentLocation)
	if err != nil {
		t.logg.Error(ctx, "history write failed, keeping active request", err)
		return nil, err
	}

	if _, err := t.requests.DeleteByID(ctx, req.ReqID); err != nil {
		t.logg.Error(ctx, "delete active request failed after history write", err)
		return record, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete active request")
	}
	return record, nil
}

// ManualDelete removes the request for serialNo by hand, recording it with
// an unknown current location.
func (t *Transitioner) ManualDelete(ctx context.Context, serialNo string) (*models.HistoryRecord, error) {
	if serialNo == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "serial_no is required")
	}
	req, err := t.requests.FindBySerial(ctx, serialNo)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found").
				WithDetails(map[string]any{"serial_no": serialNo})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find request")
	}
	return t.Resolve(ctx, *req, enums.FulfillmentManualDelete, models.ManualDeleteLocation)
}
