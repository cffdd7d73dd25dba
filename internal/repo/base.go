// Package repo holds the gorm plumbing shared by the ledger repositories.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by repositories that may run inside a caller's transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB binds ctx to the connection. A nil ctx yields the raw connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bind returns a Base running on tx, or b itself when tx is nil.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// DeleteWhere removes the rows of model matching query and reports how many
// were deleted.
func (b Base) DeleteWhere(ctx context.Context, model any, query string, args ...any) (int64, error) {
	result := b.DB(ctx).Where(query, args...).Delete(model)
	return result.RowsAffected, result.Error
}

// CountOf counts every row of model's table.
func (b Base) CountOf(ctx context.Context, model any) (int64, error) {
	var count int64
	err := b.DB(ctx).Model(model).Count(&count).Error
	return count, err
}
