package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAirtime(url string) IDisbursementProvider {
	return NewAirtimeService(AirtimeOptions{
		Credentials: Credentials{Username: "acme", APIKey: "secret"},
		BaseURL:     url,
		Timeout:     time.Second,
	})
}

func kes100() Disbursement {
	return Disbursement{
		PhoneNumber:    "+254712345678",
		Amount:         decimal.NewFromInt(100),
		CurrencyCode:   "KES",
		IdempotencyKey: "idem-1",
	}
}

// TestAirtimeSend_Success verifies the form payload and the confirmation taken from the reply.
func TestAirtimeSend_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/version1/airtime/send", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("apiKey"))
		assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "acme", r.PostForm.Get("username"))

		var recipients []AirtimeRecipient
		assert.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("recipients")), &recipients))
		assert.Equal(t, []AirtimeRecipient{{PhoneNumber: "+254712345678", Amount: "KES 100.00"}}, recipients)

		_, _ = w.Write([]byte(`{
			"errorMessage": "None",
			"numSent": 1,
			"totalAmount": "KES 100.0000",
			"totalDiscount": "KES 4.0000",
			"responses": [{
				"phoneNumber": "+254712345678",
				"amount": "KES 100.0000",
				"discount": "KES 4.0000",
				"status": "Sent",
				"requestId": "ATQid_abc",
				"errorMessage": "None"
			}]
		}`))
	}))
	defer srv.Close()

	receipt, err := newAirtime(srv.URL).Send(context.Background(), kes100())
	require.NoError(t, err)
	assert.Equal(t, "ATQid_abc", receipt.Confirmation)
	assert.Equal(t, "KES 4.0000", receipt.Discount)
}

// TestAirtimeSend_Rejections verifies every non-"Sent" reply is reported as ErrAirtimeRejected.
func TestAirtimeSend_Rejections(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"top-level error": `{"errorMessage":"Insufficient balance","numSent":0,"responses":[]}`,
		"empty responses": `{"errorMessage":"None","numSent":0,"responses":[]}`,
		"failed entry":    `{"errorMessage":"None","numSent":0,"responses":[{"status":"Failed","errorMessage":"Invalid phone number"}]}`,
	}

	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := newAirtime(srv.URL).Send(context.Background(), kes100())
			require.ErrorIs(t, err, ErrAirtimeRejected)
		})
	}
}

// TestAirtimeSend_Unprocessable verifies a 422 maps to ErrUnprocessableEntity.
func TestAirtimeSend_Unprocessable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newAirtime(srv.URL).Send(context.Background(), kes100())
	require.ErrorIs(t, err, ErrUnprocessableEntity)
}
