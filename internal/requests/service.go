package requests

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/containerflow/pkg/db"
	"github.com/angelmondragon/containerflow/pkg/db/models"
	"github.com/angelmondragon/containerflow/pkg/erp"
	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
	"github.com/angelmondragon/containerflow/pkg/timeutil"
)

// ContainerCatalog lists the ERP containers of a part.
type ContainerCatalog interface {
	ContainersByPart(ctx context.Context, partNo, excludedPrefix string) ([]erp.Container, error)
}

// Service defines the active-request operations exposed to the API.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.ActiveRequest, error)
	List(ctx context.Context) ([]models.ActiveRequest, error)
	Summary(ctx context.Context) (*Summary, error)
	AvailableContainers(ctx context.Context, partNo string) ([]AvailableContainer, error)
}

// SubmitInput is a new container request. A nil ReqTime means now; times
// without a zone must already have been interpreted as UTC by the caller.
type SubmitInput struct {
	SerialNo  string
	PartNo    string
	Revision  string
	Quantity  decimal.Decimal
	Location  string
	DeliverTo string
	ReqTime   *time.Time
}

// Summary is the ledger size and age range.
type Summary struct {
	ActiveRequests int64 `json:"active_requests"`
	Span
}

// AvailableContainer is an ERP container flagged with whether it is already requested.
type AvailableContainer struct {
	erp.Container
	IsRequested bool `json:"is_requested"`
}

type ServiceParams struct {
	Repo                   Repository
	Catalog                ContainerCatalog
	ExcludedLocationPrefix string
	Now                    func() time.Time
}

type service struct {
	repo           Repository
	catalog        ContainerCatalog
	excludedPrefix string
	now            func() time.Time
}

// NewService wires request dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "requests repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:           params.Repo,
		catalog:        params.Catalog,
		excludedPrefix: params.ExcludedLocationPrefix,
		now:            now,
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.ActiveRequest, error) {
	serial := strings.TrimSpace(input.SerialNo)
	part := strings.TrimSpace(input.PartNo)
	if serial == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "serial_no is required")
	}
	if part == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part_no is required")
	}
	if input.Quantity.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
	}

	now := s.now().UTC()
	reqTime := now
	if input.ReqTime != nil && !input.ReqTime.IsZero() {
		reqTime = timeutil.UTC(*input.ReqTime)
	}
	if reqTime.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "req_time cannot be in the future").
			WithDetails(map[string]any{"req_time": reqTime})
	}

	row := &models.ActiveRequest{
		SerialNo:  serial,
		PartNo:    part,
		Revision:  strings.TrimSpace(input.Revision),
		Quantity:  input.Quantity.Round(2),
		Location:  strings.TrimSpace(input.Location),
		DeliverTo: strings.TrimSpace(input.DeliverTo),
		ReqTime:   reqTime,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "container already requested").
				WithDetails(map[string]any{"serial_no": serial})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request")
	}
	return row, nil
}

func (s *service) List(ctx context.Context) ([]models.ActiveRequest, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}
	return rows, nil
}

func (s *service) Summary(ctx context.Context) (*Summary, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count requests")
	}
	span, err := s.repo.Span(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request span")
	}
	return &Summary{ActiveRequests: count, Span: *span}, nil
}

func (s *service) AvailableContainers(ctx context.Context, partNo string) ([]AvailableContainer, error) {
	if s.catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "container catalog not configured")
	}
	containers, err := s.catalog.ContainersByPart(ctx, partNo, s.excludedPrefix)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}
	requested := make(map[string]struct{}, len(active))
	for _, row := range active {
		requested[row.SerialNo] = struct{}{}
	}

	out := make([]AvailableContainer, 0, len(containers))
	for _, c := range containers {
		_, ok := requested[c.SerialNo]
		out = append(out, AvailableContainer{Container: c, IsRequested: ok})
	}
	return out, nil
}
