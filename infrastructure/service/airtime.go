package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	airtimeStatusSent = "Sent"
	noError           = "None"
)

type IDisbursementProvider interface {
	Send(ctx context.Context, input Disbursement) (DisbursementReceipt, error)
}

type AirtimeOptions struct {
	Credentials
	BaseURL    string
	Sandbox    bool
	Timeout    time.Duration
	HTTPClient *http.Client
}

type airtime struct {
	*client
}

func NewAirtimeService(opts AirtimeOptions) IDisbursementProvider {
	baseURL := pickURL(opts.BaseURL, opts.Sandbox, liveAirtimeURL, sandboxAirtimeURL)
	return &airtime{newClient(opts.Credentials, baseURL, opts.Timeout, opts.HTTPClient)}
}

// Send credits airtime to a single recipient. Anything other than a "Sent"
// entry for the recipient is reported as an error.
func (s *airtime) Send(ctx context.Context, input Disbursement) (DisbursementReceipt, error) {
	recipients, err := json.Marshal([]AirtimeRecipient{{
		PhoneNumber: input.PhoneNumber,
		Amount:      input.CurrencyCode + " " + input.Amount.StringFixed(2),
	}})
	if err != nil {
		return DisbursementReceipt{}, err
	}

	form := url.Values{}
	form.Set("username", s.creds.Username)
	form.Set("recipients", string(recipients))

	var headers map[string]string
	if input.IdempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": input.IdempotencyKey}
	}

	var resp AirtimeResponse
	err = s.do(ctx, http.MethodPost, "/version1/airtime/send", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()), headers, &resp)
	if err != nil {
		return DisbursementReceipt{}, err
	}

	if resp.ErrorMessage != "" && resp.ErrorMessage != noError {
		return DisbursementReceipt{}, fmt.Errorf("%w: %s", ErrAirtimeRejected, resp.ErrorMessage)
	}
	if len(resp.Responses) == 0 {
		return DisbursementReceipt{}, fmt.Errorf("%w: empty response", ErrAirtimeRejected)
	}

	item := resp.Responses[0]
	if item.Status != airtimeStatusSent {
		reason := item.ErrorMessage
		if reason == "" || reason == noError {
			reason = item.Status
		}
		return DisbursementReceipt{}, fmt.Errorf("%w: %s", ErrAirtimeRejected, reason)
	}

	return DisbursementReceipt{
		Confirmation: item.RequestID,
		Amount:       item.Amount,
		Discount:     item.Discount,
	}, nil
}
