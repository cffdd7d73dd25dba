package history

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/containerflow/internal/repo"
	"github.com/angelmondragon/containerflow/pkg/db/models"
	"github.com/angelmondragon/containerflow/pkg/enums"
)

// Repository exposes persistence helpers for the history log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, record *models.HistoryRecord) error
	FindByReqID(ctx context.Context, reqID int64) (*models.HistoryRecord, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	List(ctx context.Context, filter Filter, offset, limit int) ([]models.HistoryRecord, error)
	StatRows(ctx context.Context, filter Filter) ([]StatRow, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	CountAll(ctx context.Context) (int64, error)
}

// Filter narrows history queries. Zero values disable a clause.
type Filter struct {
	Since            time.Time
	SerialContains   string
	PartContains     string
	PartEquals       string
	Type             enums.FulfillmentType
	Start            *time.Time
	End              *time.Time
	ExcludeDeliverTo string
}

// StatRow is the projection analytics aggregates over.
type StatRow struct {
	PartNo                     string
	FulfilledTime              time.Time
	FulfillmentDurationMinutes int
	FulfillmentType            enums.FulfillmentType
}

type repositoryImpl struct {
	repo.Base
}

// NewRepository returns a history repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{Base: repo.NewBase(db)}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{Base: r.Bind(tx)}
}

func (r *repositoryImpl) Insert(ctx context.Context, record *models.HistoryRecord) error {
	return r.DB(ctx).Create(record).Error
}

func (r *repositoryImpl) FindByReqID(ctx context.Context, reqID int64) (*models.HistoryRecord, error) {
	var record models.HistoryRecord
	if err := r.DB(ctx).Where("req_id = ?", reqID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repositoryImpl) Count(ctx context.Context, filter Filter) (int64, error) {
	var count int64
	err := r.filtered(ctx, filter).Count(&count).Error
	return count, err
}

func (r *repositoryImpl) List(ctx context.Context, filter Filter, offset, limit int) ([]models.HistoryRecord, error) {
	var rows []models.HistoryRecord
	query := r.filtered(ctx, filter).Order("fulfilled_time DESC, history_id DESC")
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) StatRows(ctx context.Context, filter Filter) ([]StatRow, error) {
	var rows []StatRow
	err := r.filtered(ctx, filter).
		Select("part_no, fulfilled_time, fulfillment_duration_minutes, fulfillment_type").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.DeleteWhere(ctx, &models.HistoryRecord{}, "fulfilled_time < ?", cutoff.UTC())
}

func (r *repositoryImpl) DeleteAll(ctx context.Context) (int64, error) {
	return r.DeleteWhere(ctx, &models.HistoryRecord{}, "1 = 1")
}

func (r *repositoryImpl) CountAll(ctx context.Context) (int64, error) {
	return r.CountOf(ctx, &models.HistoryRecord{})
}

func (r *repositoryImpl) filtered(ctx context.Context, f Filter) *gorm.DB {
	query := r.DB(ctx).Model(&models.HistoryRecord{})
	if !f.Since.IsZero() {
		query = query.Where("fulfilled_time >= ?", f.Since.UTC())
	}
	if f.ExcludeDeliverTo != "" {
		query = query.Where("deliver_to <> ?", f.ExcludeDeliverTo)
	}
	if f.SerialContains != "" {
		query = query.Where("serial_no LIKE ?", "%"+f.SerialContains+"%")
	}
	if f.PartContains != "" {
		query = query.Where("part_no LIKE ?", "%"+f.PartContains+"%")
	}
	if f.PartEquals != "" {
		query = query.Where("part_no = ?", f.PartEquals)
	}
	if f.Type != "" {
		query = query.Where("fulfillment_type = ?", string(f.Type))
	}
	if f.Start != nil {
		query = query.Where("fulfilled_time >= ?", f.Start.UTC())
	}
	if f.End != nil {
		query = query.Where("fulfilled_time <= ?", f.End.UTC())
	}
	return query
}
