package topup

import (
	"time"

	"github.com/shopspring/decimal"
)

type OutcomeKind string

const (
	OutcomeDeclined           OutcomeKind = "DECLINED"
	OutcomeDisbursed          OutcomeKind = "DISBURSED"
	OutcomeDisbursementFailed OutcomeKind = "DISBURSEMENT_FAILED"
	OutcomeDisbursing         OutcomeKind = "DISBURSING"
)

// Outcome is the result of resolving a callback. AlreadyResolved is set when
// the record had been decided before and nothing was done this time.
type Outcome struct {
	Kind            OutcomeKind `json:"outcome"`
	CorrelationID   string      `json:"requestId"`
	Reason          string      `json:"reason,omitempty"`
	Confirmation    string      `json:"confirmation,omitempty"`
	AlreadyResolved bool        `json:"alreadyResolved"`
}

type InitiateOutput struct {
	RequestID    string          `json:"requestId"`
	PhoneNumber  string          `json:"phoneNumber"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
	Status       Status          `json:"status"`
}

type StatusOutput struct {
	RequestID     string          `json:"requestId"`
	PhoneNumber   string          `json:"phoneNumber"`
	Amount        decimal.Decimal `json:"amount"`
	CurrencyCode  string          `json:"currencyCode"`
	Status        Status          `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	Confirmation  string          `json:"confirmation,omitempty"`
	Attempts      int             `json:"attempts"`
	LastSimSwapAt *time.Time      `json:"lastSimSwapAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	ExpiresAt     time.Time       `json:"expiresAt"`
}

func outcomeFor(p PendingTopUp, alreadyResolved bool) Outcome {
	out := Outcome{CorrelationID: p.CorrelationID, AlreadyResolved: alreadyResolved}
	switch p.Status {
	case StatusDeclined:
		out.Kind = OutcomeDeclined
		out.Reason = p.DeclineReason
	case StatusApproved:
		out.Kind = OutcomeDisbursed
		out.Confirmation = p.Confirmation
	case StatusDisbursementFailed:
		out.Kind = OutcomeDisbursementFailed
		out.Reason = p.FailureReason
	default:
		out.Kind = OutcomeDisbursing
	}
	return out
}

func statusFor(p PendingTopUp) StatusOutput {
	reason := p.DeclineReason
	if p.Status == StatusDisbursementFailed {
		reason = p.FailureReason
	}
	return StatusOutput{
		RequestID:     p.CorrelationID,
		PhoneNumber:   p.PhoneNumber,
		Amount:        p.Amount,
		CurrencyCode:  p.CurrencyCode,
		Status:        p.Status,
		Reason:        reason,
		Confirmation:  p.Confirmation,
		Attempts:      p.Attempts,
		LastSimSwapAt: p.LastSimSwapAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		ExpiresAt:     p.ExpiresAt,
	}
}
