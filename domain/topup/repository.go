package topup

import (
	"context"
	"fmt"
	"time"
)

// IRepository is the pending top-up store. CompareAndSwap is the only way a
// record changes once created, which keeps every transition atomic.
type IRepository interface {
	Get(ctx context.Context, correlationID string) (PendingTopUp, error)
	Create(ctx context.Context, topUp PendingTopUp) error
	CompareAndSwap(ctx context.Context, correlationID string, expected Status, next PendingTopUp) error
}

// Retention decides how long a record is kept given its status.
type Retention struct {
	Pending  time.Duration
	Resolved time.Duration
}

func (r Retention) ExpiresAt(status Status, now time.Time) time.Time {
	if status == StatusPending {
		return now.Add(r.Pending)
	}
	return now.Add(r.Resolved)
}

func checkTransition(expected Status, next PendingTopUp) error {
	if !expected.CanTransition(next.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrTransition, expected, next.Status)
	}
	return nil
}
