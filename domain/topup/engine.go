package topup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sim-swap-topup/infrastructure/service"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

type EngineOptions struct {
	Policy      RecentSwapPolicy
	Retention   Retention
	MaxAttempts int
	// StaleAfter lets RetryDisbursement reclaim a DISBURSING record that has not
	// changed for this long. Zero leaves such records for manual reconciliation.
	StaleAfter  time.Duration
}

// Engine owns the decision for each pending top-up. Every state change goes
// through IRepository.CompareAndSwap, so duplicate or concurrent callbacks
// for one correlation id cause at most one policy decision and one payout.
type Engine struct {
	repository IRepository
	disburser  service.IDisbursementProvider
	retries    IRetryScheduler
	opts       EngineOptions
	now        func() time.Time
}

func NewEngine(repository IRepository, disburser service.IDisbursementProvider, retries IRetryScheduler, opts EngineOptions) *Engine {
	if retries == nil {
		retries = NewNoopRetryScheduler()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &Engine{
		repository: repository,
		disburser:  disburser,
		retries:    retries,
		opts:       opts,
		now:        time.Now,
	}
}

// Resolve applies the provider's SIM-swap verdict to the matching pending top-up.
func (e *Engine) Resolve(ctx context.Context, input CallbackInput) (Outcome, error) {
	if err := validateStruct(input); err != nil {
		return Outcome{}, err
	}
	lastSwap, err := ParseSwapDate(input.LastSimSwapDate)
	if err != nil {
		return Outcome{}, err
	}

	record, err := e.repository.Get(ctx, input.RequestID)
	if err != nil {
		return Outcome{}, err
	}
	if record.Status != StatusPending {
		log.Infow("duplicate sim swap callback ignored", "requestId", record.CorrelationID, "status", record.Status)
		return outcomeFor(record, true), nil
	}

	now := e.now().UTC()
	approve, reason := e.opts.Policy.Evaluate(lastSwap, now)

	next := record
	next.LastSimSwapAt = lastSwap
	next.UpdatedAt = now

	if !approve {
		next.Status = StatusDeclined
		next.DeclineReason = reason
		next.ExpiresAt = e.opts.Retention.ExpiresAt(StatusDeclined, now)
		if err = e.repository.CompareAndSwap(ctx, record.CorrelationID, StatusPending, next); err != nil {
			return e.lostRace(ctx, record.CorrelationID, err)
		}
		log.Infow("top-up declined", "requestId", next.CorrelationID, "reason", reason)
		return outcomeFor(next, false), nil
	}

	next.Status = StatusDisbursing
	next.Attempts++
	next.ExpiresAt = e.opts.Retention.ExpiresAt(StatusDisbursing, now)
	if err = e.repository.CompareAndSwap(ctx, record.CorrelationID, StatusPending, next); err != nil {
		return e.lostRace(ctx, record.CorrelationID, err)
	}
	return e.disburse(ctx, next)
}

// RetryDisbursement makes another payout attempt for a top-up whose previous
// disbursement failed. Records in any other state are left alone.
func (e *Engine) RetryDisbursement(ctx context.Context, correlationID string) (Outcome, error) {
	record, err := e.repository.Get(ctx, correlationID)
	if err != nil {
		return Outcome{}, err
	}

	switch record.Status {
	case StatusApproved, StatusDeclined:
		return outcomeFor(record, true), nil
	case StatusDisbursementFailed:
	case StatusDisbursing:
		if !e.stale(record) {
			return outcomeFor(record, true), fmt.Errorf("%w: %s is %s", ErrNotRetryable, correlationID, record.Status)
		}
		if record, err = e.markUnknown(ctx, record); err != nil {
			return e.lostRace(ctx, correlationID, err)
		}
	default:
		return outcomeFor(record, true), fmt.Errorf("%w: %s is %s", ErrNotRetryable, correlationID, record.Status)
	}

	if record.Attempts >= e.opts.MaxAttempts {
		return outcomeFor(record, true), fmt.Errorf("%w: %s after %d attempts", ErrRetryExhausted, correlationID, record.Attempts)
	}

	now := e.now().UTC()
	next := record
	next.Status = StatusDisbursing
	next.Attempts++
	next.UpdatedAt = now
	next.ExpiresAt = e.opts.Retention.ExpiresAt(StatusDisbursing, now)
	if err = e.repository.CompareAndSwap(ctx, correlationID, StatusDisbursementFailed, next); err != nil {
		return e.lostRace(ctx, correlationID, err)
	}
	return e.disburse(ctx, next)
}

func (e *Engine) Status(ctx context.Context, correlationID string) (StatusOutput, error) {
	record, err := e.repository.Get(ctx, correlationID)
	if err != nil {
		return StatusOutput{}, err
	}
	return statusFor(record), nil
}

// disburse pays out a record already claimed as DISBURSING and records the result.
func (e *Engine) disburse(ctx context.Context, claimed PendingTopUp) (Outcome, error) {
	receipt, sendErr := e.disburser.Send(ctx, service.Disbursement{
		PhoneNumber:    claimed.PhoneNumber,
		Amount:         claimed.Amount,
		CurrencyCode:   claimed.CurrencyCode,
		IdempotencyKey: idempotencyKey(claimed.CorrelationID),
	})

	now := e.now().UTC()
	next := claimed
	next.UpdatedAt = now
	next.ExpiresAt = e.opts.Retention.ExpiresAt(StatusApproved, now)

	if sendErr != nil {
		next.Status = StatusDisbursementFailed
		next.FailureReason = sendErr.Error()
		casErr := e.repository.CompareAndSwap(ctx, claimed.CorrelationID, StatusDisbursing, next)
		if casErr != nil {
			log.Errorw("recording disbursement failure", "requestId", claimed.CorrelationID, "error", casErr)
		} else {
			log.Warnw("disbursement failed",
				"requestId", next.CorrelationID, "attempt", next.Attempts, "error", sendErr)
		}

		// Scheduled even when the record is stuck in DISBURSING; the retry
		// reclaims it once it is stale.
		if next.Attempts < e.opts.MaxAttempts {
			if err := e.retries.Schedule(ctx, next.CorrelationID, next.Attempts+1); err != nil {
				log.Errorw("scheduling disbursement retry", "requestId", next.CorrelationID, "error", err)
			}
		}
		if casErr != nil {
			return Outcome{}, casErr
		}
		return outcomeFor(next, false), nil
	}

	next.Status = StatusApproved
	next.Confirmation = receipt.Confirmation
	next.FailureReason = ""
	if err := e.repository.CompareAndSwap(ctx, claimed.CorrelationID, StatusDisbursing, next); err != nil {
		// The airtime has been sent; report it even though the record lags.
		log.Errorw("recording disbursement", "requestId", claimed.CorrelationID,
			"confirmation", receipt.Confirmation, "error", err)
	}
	log.Infow("airtime disbursed", "requestId", next.CorrelationID,
		"phoneNumber", next.PhoneNumber, "amount", next.Amount.String(), "confirmation", receipt.Confirmation)
	return outcomeFor(next, false), nil
}

func (e *Engine) stale(record PendingTopUp) bool {
	return e.opts.StaleAfter > 0 && e.now().Sub(record.UpdatedAt) >= e.opts.StaleAfter
}

// markUnknown moves a DISBURSING record whose send never reported back to
// DISBURSEMENT_FAILED so the retry path can claim it again.
func (e *Engine) markUnknown(ctx context.Context, record PendingTopUp) (PendingTopUp, error) {
	now := e.now().UTC()
	next := record
	next.Status = StatusDisbursementFailed
	next.FailureReason = fmt.Sprintf("disbursement outcome unknown after %s", now.Sub(record.UpdatedAt).Truncate(time.Second))
	next.UpdatedAt = now
	next.ExpiresAt = e.opts.Retention.ExpiresAt(StatusDisbursementFailed, now)
	if err := e.repository.CompareAndSwap(ctx, record.CorrelationID, StatusDisbursing, next); err != nil {
		return record, err
	}
	log.Warnw("reclaiming stale disbursement", "requestId", record.CorrelationID, "attempt", record.Attempts)
	return next, nil
}

// lostRace turns a failed transition into the outcome recorded by whoever won it.
func (e *Engine) lostRace(ctx context.Context, correlationID string, casErr error) (Outcome, error) {
	if !errors.Is(casErr, ErrStatusConflict) {
		return Outcome{}, casErr
	}
	record, err := e.repository.Get(ctx, correlationID)
	if err != nil {
		return Outcome{}, err
	}
	return outcomeFor(record, true), nil
}

// idempotencyKey is the same for every attempt of a top-up, so a retry after
// an ambiguous failure such as a timeout cannot be paid twice by the provider.
func idempotencyKey(correlationID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("topup:"+correlationID)).String()
}
