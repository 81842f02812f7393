package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

type IInsightProvider interface {
	CheckSimSwapState(ctx context.Context, phoneNumbers []string) ([]SimSwapCheck, error)
}

type InsightsOptions struct {
	Credentials
	BaseURL    string
	Sandbox    bool
	Timeout    time.Duration
	HTTPClient *http.Client
}

type insights struct {
	*client
}

func NewInsightsService(opts InsightsOptions) IInsightProvider {
	baseURL := pickURL(opts.BaseURL, opts.Sandbox, liveInsightsURL, sandboxInsightsURL)
	return &insights{newClient(opts.Credentials, baseURL, opts.Timeout, opts.HTTPClient)}
}

// CheckSimSwapState asks the provider for the SIM-swap history of each number.
// The provider answers later, out of band, keyed by the returned request ids.
func (s *insights) CheckSimSwapState(ctx context.Context, phoneNumbers []string) ([]SimSwapCheck, error) {
	body, err := json.Marshal(SimSwapRequest{
		Username:     s.creds.Username,
		PhoneNumbers: phoneNumbers,
	})
	if err != nil {
		return nil, err
	}

	var resp SimSwapResponse
	if err = s.do(ctx, http.MethodPost, "/v1/sim-swap", "application/json", bytes.NewReader(body), nil, &resp); err != nil {
		return nil, err
	}

	if len(resp.Responses) == 0 {
		if resp.ErrorMessage != "" {
			return nil, fmt.Errorf("%w: %s", ErrUpstream, resp.ErrorMessage)
		}
		return nil, ErrMissingRequestID
	}

	checks := make([]SimSwapCheck, 0, len(resp.Responses))
	for i, item := range resp.Responses {
		if item.RequestID == "" {
			return nil, fmt.Errorf("%w for %s", ErrMissingRequestID, item.PhoneNumber.Number)
		}
		number := item.PhoneNumber.Number
		if number == "" && i < len(phoneNumbers) {
			number = phoneNumbers[i]
		}
		checks = append(checks, SimSwapCheck{PhoneNumber: number, RequestID: item.RequestID})
	}
	return checks, nil
}
