package topup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	selectColumns = `correlation_id, phone_number, raw_number, amount, currency_code, status,
		decline_reason, failure_reason, confirmation, attempts, last_sim_swap_at,
		created_at, updated_at, expires_at`

	getQuery = `SELECT ` + selectColumns + ` FROM pending_top_ups
		WHERE correlation_id = $1 AND expires_at > $2`

	insertQuery = `INSERT INTO pending_top_ups (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (correlation_id) DO NOTHING`

	casQuery = `UPDATE pending_top_ups SET
		status = $3, decline_reason = $4, failure_reason = $5, confirmation = $6,
		attempts = $7, last_sim_swap_at = $8, updated_at = $9, expires_at = $10
		WHERE correlation_id = $1 AND status = $2 AND expires_at > $11`

	purgeQuery = `DELETE FROM pending_top_ups WHERE expires_at <= $1`
)

type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository expects the pending_top_ups table created by
// database.NewPostgres. Transitions are a single conditional UPDATE.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Get(ctx context.Context, correlationID string) (PendingTopUp, error) {
	var (
		topUp    PendingTopUp
		status   string
		lastSwap sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, getQuery, correlationID, r.now().UTC()).Scan(
		&topUp.CorrelationID, &topUp.PhoneNumber, &topUp.RawNumber, &topUp.Amount, &topUp.CurrencyCode, &status,
		&topUp.DeclineReason, &topUp.FailureReason, &topUp.Confirmation, &topUp.Attempts, &lastSwap,
		&topUp.CreatedAt, &topUp.UpdatedAt, &topUp.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingTopUp{}, fmt.Errorf("%w: %s", ErrNotFound, correlationID)
	}
	if err != nil {
		return PendingTopUp{}, err
	}

	topUp.Status = Status(status)
	if !topUp.Status.Valid() {
		return PendingTopUp{}, fmt.Errorf("top-up %s has unknown status %q", correlationID, status)
	}
	if lastSwap.Valid {
		t := lastSwap.Time.UTC()
		topUp.LastSimSwapAt = &t
	}
	return topUp, nil
}

func (r *PostgresRepository) Create(ctx context.Context, topUp PendingTopUp) error {
	res, err := r.db.ExecContext(ctx, insertQuery,
		topUp.CorrelationID, topUp.PhoneNumber, topUp.RawNumber, topUp.Amount, topUp.CurrencyCode, string(topUp.Status),
		topUp.DeclineReason, topUp.FailureReason, topUp.Confirmation, topUp.Attempts, topUp.LastSimSwapAt,
		topUp.CreatedAt, topUp.UpdatedAt, topUp.ExpiresAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, topUp.CorrelationID)
	}
	return nil
}

func (r *PostgresRepository) CompareAndSwap(ctx context.Context, correlationID string, expected Status, next PendingTopUp) error {
	if err := checkTransition(expected, next); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, casQuery,
		correlationID, string(expected),
		string(next.Status), next.DeclineReason, next.FailureReason, next.Confirmation,
		next.Attempts, next.LastSimSwapAt, next.UpdatedAt, next.ExpiresAt,
		r.now().UTC(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	current, err := r.Get(ctx, correlationID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s, expected %s", ErrStatusConflict, correlationID, current.Status, expected)
}

// PurgeExpired deletes records past their expiry and returns how many went.
func (r *PostgresRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, purgeQuery, r.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
