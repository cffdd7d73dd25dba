package reconcile

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate spaces outbound ERP lookups. Wait blocks until the next call may be
// issued or ctx is done.
type Gate interface {
	Wait(ctx context.Context) error
}

// NewRateGate allows one lookup per interval with no burst beyond the first
// call. A non-positive interval disables throttling.
func NewRateGate(interval time.Duration) Gate {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
