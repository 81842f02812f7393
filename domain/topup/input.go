package topup

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type InitiateInput struct {
	Number string `query:"number" json:"number" validate:"required"`
	Amount string `query:"amount" json:"amount" validate:"required"`
}

// CallbackInput is the provider's asynchronous SIM-swap verdict.
type CallbackInput struct {
	RequestID       string `json:"requestId" form:"requestId" validate:"required"`
	LastSimSwapDate string `json:"lastSimSwapDate" form:"lastSimSwapDate"`
}

// amountPlaces matches the provider's "KES 100.00" amount format.
const amountPlaces = 2

var validate = validator.New()

var swapDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-01-2006",
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q is not a number", ErrValidation, raw)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !amount.Equal(amount.Round(amountPlaces)) {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q has more than %d decimal places", ErrValidation, raw, amountPlaces)
	}
	return amount, nil
}

// ParseSwapDate accepts ISO-8601 timestamps and the provider's day-first dates.
// An empty string means the SIM has never been swapped and yields nil.
func ParseSwapDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range swapDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: unrecognised lastSimSwapDate %q", ErrValidation, raw)
}
