package topup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sim-swap-topup/infrastructure/service"

	"github.com/gofiber/fiber/v2/log"
)

type IntakeOptions struct {
	CountryCode  string
	CurrencyCode string
	Retention    Retention
}

// Intake starts a top-up: it validates the request, asks the insight provider
// for a SIM-swap check and parks the request under the returned correlation id.
type Intake struct {
	repository IRepository
	insights   service.IInsightProvider
	opts       IntakeOptions
	now        func() time.Time
}

func NewIntake(repository IRepository, insights service.IInsightProvider, opts IntakeOptions) *Intake {
	return &Intake{repository: repository, insights: insights, opts: opts, now: time.Now}
}

func (i *Intake) Initiate(ctx context.Context, input InitiateInput) (InitiateOutput, error) {
	if err := validateStruct(input); err != nil {
		return InitiateOutput{}, err
	}
	amount, err := parseAmount(input.Amount)
	if err != nil {
		return InitiateOutput{}, err
	}
	phone, err := NormalizePhone(input.Number, i.opts.CountryCode)
	if err != nil {
		return InitiateOutput{}, err
	}

	checks, err := i.insights.CheckSimSwapState(ctx, []string{phone})
	if err != nil {
		log.Errorw("sim swap check failed", "phoneNumber", phone, "error", err)
		return InitiateOutput{}, fmt.Errorf("%w: sim swap check: %v", ErrProvider, err)
	}
	check, ok := pickCheck(checks, phone)
	if !ok {
		return InitiateOutput{}, fmt.Errorf("%w: sim swap check returned no request id for %s", ErrProvider, phone)
	}

	now := i.now().UTC()
	record := PendingTopUp{
		CorrelationID: check.RequestID,
		PhoneNumber:   phone,
		RawNumber:     input.Number,
		Amount:        amount,
		CurrencyCode:  i.opts.CurrencyCode,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     i.opts.Retention.ExpiresAt(StatusPending, now),
	}

	if err = i.repository.Create(ctx, record); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return InitiateOutput{}, fmt.Errorf("%w: duplicate correlation id %s", ErrProvider, check.RequestID)
		}
		return InitiateOutput{}, err
	}

	log.Infow("sim swap check initiated",
		"requestId", record.CorrelationID, "phoneNumber", phone, "amount", amount.String())

	return InitiateOutput{
		RequestID:    record.CorrelationID,
		PhoneNumber:  record.PhoneNumber,
		Amount:       record.Amount,
		CurrencyCode: record.CurrencyCode,
		Status:       record.Status,
	}, nil
}

func pickCheck(checks []service.SimSwapCheck, phone string) (service.SimSwapCheck, bool) {
	for _, c := range checks {
		if c.PhoneNumber == phone && c.RequestID != "" {
			return c, true
		}
	}
	if len(checks) == 1 && checks[0].RequestID != "" {
		return checks[0], true
	}
	return service.SimSwapCheck{}, false
}
