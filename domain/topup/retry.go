package topup

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
)

// IRetryScheduler queues another disbursement attempt for a failed top-up.
type IRetryScheduler interface {
	Schedule(ctx context.Context, correlationID string, attempt int) error
}

type noopRetryScheduler struct{}

// NewNoopRetryScheduler is used when no queue is configured; failed
// disbursements then wait for an operator.
func NewNoopRetryScheduler() IRetryScheduler {
	return noopRetryScheduler{}
}

func (noopRetryScheduler) Schedule(_ context.Context, correlationID string, attempt int) error {
	log.Warnw("no retry queue configured, disbursement left for manual retry",
		"requestId", correlationID, "attempt", attempt)
	return nil
}
