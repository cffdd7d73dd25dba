package requests

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/containerflow/internal/repo"
	"github.com/angelmondragon/containerflow/pkg/db/models"
)

// Repository exposes persistence helpers for the active-request ledger.
type Repository interface {
	ListAll(ctx context.Context) ([]models.ActiveRequest, error)
	Create(ctx context.Context, req *models.ActiveRequest) error
	FindBySerial(ctx context.Context, serialNo string) (*models.ActiveRequest, error)
	DeleteByID(ctx context.Context, reqID int64) (int64, error)
	Count(ctx context.Context) (int64, error)
	Span(ctx context.Context) (*Span, error)
}

// Span is the req_time range of the ledger. Both ends are nil when empty.
type Span struct {
	Oldest *time.Time `json:"oldest_active_request"`
	Newest *time.Time `json:"newest_active_request"`
}

type repositoryImpl struct {
	repo.Base
}

// NewRepository returns a requests repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{Base: repo.NewBase(db)}
}

func (r *repositoryImpl) ListAll(ctx context.Context) ([]models.ActiveRequest, error) {
	var rows []models.ActiveRequest
	if err := r.DB(ctx).Order("req_time DESC, req_id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) Create(ctx context.Context, req *models.ActiveRequest) error {
	return r.DB(ctx).Create(req).Error
}

func (r *repositoryImpl) FindBySerial(ctx context.Context, serialNo string) (*models.ActiveRequest, error) {
	var row models.ActiveRequest
	if err := r.DB(ctx).Where("serial_no = ?", serialNo).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repositoryImpl) DeleteByID(ctx context.Context, reqID int64) (int64, error) {
	return r.DeleteWhere(ctx, &models.ActiveRequest{}, "req_id = ?", reqID)
}

func (r *repositoryImpl) Count(ctx context.Context) (int64, error) {
	return r.CountOf(ctx, &models.ActiveRequest{})
}

func (r *repositoryImpl) Span(ctx context.Context) (*Span, error) {
	span := &Span{}
	var oldest, newest []models.ActiveRequest
	if err := r.DB(ctx).Select("req_time").Order("req_time ASC").Limit(1).Find(&oldest).Error; err != nil {
		return nil, err
	}
	if err := r.DB(ctx).Select("req_time").Order("req_time DESC").Limit(1).Find(&newest).Error; err != nil {
		return nil, err
	}
	if len(oldest) == 1 {
		t := oldest[0].ReqTime.UTC()
		span.Oldest = &t
	}
	if len(newest) == 1 {
		t := newest[0].ReqTime.UTC()
		span.Newest = &t
	}
	return span, nil
}
