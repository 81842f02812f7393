package topup

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending            Status = "PENDING"
	StatusDeclined           Status = "DECLINED"
	StatusDisbursing         Status = "DISBURSING"
	StatusApproved           Status = "APPROVED"
	StatusDisbursementFailed Status = "DISBURSEMENT_FAILED"
)

var transitions = map[Status][]Status{
	StatusPending:            {StatusDeclined, StatusDisbursing},
	StatusDisbursing:         {StatusApproved, StatusDisbursementFailed},
	StatusDisbursementFailed: {StatusDisbursing},
}

// CanTransition reports whether next is a legal successor of s.
func (s Status) CanTransition(next Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal statuses never change again.
func (s Status) Terminal() bool {
	return s == StatusDeclined || s == StatusApproved
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDeclined, StatusDisbursing, StatusApproved, StatusDisbursementFailed:
		return true
	}
	return false
}

// PendingTopUp is the intent to credit airtime, parked until the SIM-swap
// callback for CorrelationID arrives.
type PendingTopUp struct {
	CorrelationID string          `json:"correlationId"`
	PhoneNumber   string          `json:"phoneNumber"`
	RawNumber     string          `json:"rawNumber"`
	Amount        decimal.Decimal `json:"amount"`
	CurrencyCode  string          `json:"currencyCode"`
	Status        Status          `json:"status"`
	DeclineReason string          `json:"declineReason,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	Confirmation  string          `json:"confirmation,omitempty"`
	Attempts      int             `json:"attempts"`
	LastSimSwapAt *time.Time      `json:"lastSimSwapAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	ExpiresAt     time.Time       `json:"expiresAt"`
}

func (p PendingTopUp) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}
