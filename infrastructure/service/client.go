package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	liveInsightsURL    = "https://insights.africastalking.com"
	sandboxInsightsURL = "https://insights.sandbox.africastalking.com"
	liveAirtimeURL     = "https://api.africastalking.com"
	sandboxAirtimeURL  = "https://api.sandbox.africastalking.com"

	maxErrorBody = 512
)

type Credentials struct {
	Username string
	APIKey   string
}

// client is the transport shared by the Insights and Airtime APIs.
type client struct {
	creds   Credentials
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func newClient(creds Credentials, baseURL string, timeout time.Duration, httpClient *http.Client) *client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{
		creds:   creds,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    httpClient,
	}
}

// do sends the request under the client timeout and decodes a JSON reply into out.
func (c *client) do(ctx context.Context, method, path, contentType string, body io.Reader, headers map[string]string, out any) error {
	ctx, cancelCtx := context.WithTimeout(ctx, c.timeout)
	defer cancelCtx()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", c.creds.APIKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return ErrUnprocessableEntity
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}
	return nil
}

func pickURL(override string, sandbox bool, live, sandboxURL string) string {
	if override != "" {
		return override
	}
	if sandbox {
		return sandboxURL
	}
	return live
}
