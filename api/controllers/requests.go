package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/containerflow/api/responses"
	"github.com/angelmondragon/containerflow/api/validators"
	"github.com/angelmondragon/containerflow/internal/requests"
	"github.com/angelmondragon/containerflow/pkg/db/models"
	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
	"github.com/angelmondragon/containerflow/pkg/logger"
	"github.com/angelmondragon/containerflow/pkg/timeutil"
)

const maxIdentifierLen = 128

type manualDeleter interface {
	ManualDelete(ctx context.Context, serialNo string) (*models.HistoryRecord, error)
}

type requestSubmitRequest struct {
	SerialNo  string          `json:"serial_no" validate:"required,max=128"`
	PartNo    string          `json:"part_no" validate:"required,max=128"`
	Revision  string          `json:"revision" validate:"max=32"`
	Quantity  decimal.Decimal `json:"quantity"`
	Location  string          `json:"location" validate:"max=128"`
	DeliverTo string          `json:"deliver_to" validate:"max=128"`
	ReqTime   string          `json:"req_time"`
}

func (r requestSubmitRequest) toInput() (requests.SubmitInput, error) {
	input := requests.SubmitInput{
		SerialNo:  r.SerialNo,
		PartNo:    r.PartNo,
		Revision:  r.Revision,
		Quantity:  r.Quantity,
		Location:  r.Location,
		DeliverTo: r.DeliverTo,
	}
	if strings.TrimSpace(r.ReqTime) != "" {
		t, err := timeutil.ParseInstant(r.ReqTime)
		if err != nil {
			return requests.SubmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid req_time")
		}
		input.ReqTime = &t
	}
	return input, nil
}

// RequestsList returns the active ledger, newest request first.
func RequestsList(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"requests": rows, "count": len(rows)})
	}
}

func RequestSubmit(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		var body requestSubmitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.Submit(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

// RequestDelete removes a request by hand, recording it as manual_delete.
func RequestDelete(deleter manualDeleter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deleter == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "history transition unavailable"))
			return
		}
		serialNo := validators.SanitizeString(chi.URLParam(r, "serialNo"), maxIdentifierLen)
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "serial_no", serialNo)
		}
		record, err := deleter.ManualDelete(ctx, serialNo)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithContainer(ctx, record.ReqID, record.SerialNo), "request deleted manually")
		}
		responses.WriteSuccess(w, record)
	}
}

// ContainersAvailable lists ERP containers for part_no with their request state.
func ContainersAvailable(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		partNo := validators.QueryString(r, "part_no", maxIdentifierLen)
		if partNo == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "part_no is required"))
			return
		}
		containers, err := svc.AvailableContainers(r.Context(), partNo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"part_no": partNo, "containers": containers})
	}
}
