package history

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
)

// DefaultRetentionDays is the history horizon used when none is configured.
const DefaultRetentionDays = 30

type PurgerParams struct {
	DB      txRunner
	History Repository
	Now     func() time.Time
}

// Purger evicts history older than the retention horizon.
type Purger struct {
	db      txRunner
	history Repository
	now     func() time.Time
}

func NewPurger(params PurgerParams) (*Purger, error) {
	if params.DB == nil {
		return nil, errors.New("db required")
	}
	if params.History == nil {
		return nil, errors.New("history repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Purger{db: params.DB, history: params.History, now: now}, nil
}

// Cutoff is the instant before which records are purged for the given horizon.
func (p *Purger) Cutoff(days int) time.Time {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return p.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
}

// PurgeOlderThan deletes records fulfilled before now minus days. Running it
// again without new data deletes nothing.
func (p *Purger) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := p.Cutoff(days)
	var deleted int64
	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := p.history.WithTx(tx).DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge history")
	}
	return deleted, nil
}

// Remaining counts all history records.
func (p *Purger) Remaining(ctx context.Context) (int64, error) {
	count, err := p.history.CountAll(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count history")
	}
	return count, nil
}

// ClearAll deletes every history record.
func (p *Purger) ClearAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := p.history.WithTx(tx).DeleteAll(ctx)
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear history")
	}
	return deleted, nil
}
