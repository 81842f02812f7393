package topup

import (
	"context"
	"testing"

	"sim-swap-topup/infrastructure/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitiate_Validation verifies bad input is rejected before the provider is called.
func TestInitiate_Validation(t *testing.T) {
	t.Parallel()

	cases := map[string]InitiateInput{
		"missing number":  {Amount: "100"},
		"missing amount":  {Number: "0712345678"},
		"zero amount":     {Number: "0712345678", Amount: "0"},
		"negative amount": {Number: "0712345678", Amount: "-10"},
		"text amount":     {Number: "0712345678", Amount: "lots"},
		"sub-cent amount": {Number: "0712345678", Amount: "0.001"},
		"short number":    {Number: "12345", Amount: "100"},
	}

	for name, input := range cases {
		f := newFixture("req-1")
		_, err := f.intake.Initiate(context.Background(), input)
		require.ErrorIs(t, err, ErrValidation, name)
		assert.Equal(t, 0, f.insights.Calls(), name)
		assert.Equal(t, 0, f.repository.Len(), name)
	}
}

// TestInitiate_ProviderError verifies a failed check surfaces as ErrProvider and stores nothing.
func TestInitiate_ProviderError(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.insights.err = service.ErrTimeout

	_, err := f.intake.Initiate(context.Background(), InitiateInput{Number: "0712345678", Amount: "100"})
	require.ErrorIs(t, err, ErrProvider)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, 0, f.repository.Len())
}

// TestInitiate_DuplicateCorrelationID verifies a reissued id is refused instead of overwriting.
func TestInitiate_DuplicateCorrelationID(t *testing.T) {
	t.Parallel()

	f := newFixture("req-1", "req-1")
	initiate(t, f, "0712345678", "100")

	_, err := f.intake.Initiate(context.Background(), InitiateInput{Number: "0799999999", Amount: "5"})
	require.ErrorIs(t, err, ErrProvider)

	rec, err := f.repository.Get(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "+254712345678", rec.PhoneNumber)
}

// TestInitiate_DistinctIDs verifies each initiation is tracked under its own id.
func TestInitiate_DistinctIDs(t *testing.T) {
	t.Parallel()

	f := newFixture("req-1", "req-2", "req-3")
	seen := map[string]bool{}
	for _, n := range []string{"0712345678", "0712345678", "0733444555"} {
		out := initiate(t, f, n, "10")
		assert.False(t, seen[out.RequestID])
		seen[out.RequestID] = true
	}
	assert.Equal(t, 3, f.repository.Len())
}

// TestPickCheck verifies the check matching the queried number is chosen.
func TestPickCheck(t *testing.T) {
	t.Parallel()

	checks := []service.SimSwapCheck{
		{PhoneNumber: "+254700000000", RequestID: "a"},
		{PhoneNumber: "+254712345678", RequestID: "b"},
	}
	got, ok := pickCheck(checks, "+254712345678")
	require.True(t, ok)
	assert.Equal(t, "b", got.RequestID)

	_, ok = pickCheck(checks, "+254799999999")
	assert.False(t, ok)

	got, ok = pickCheck([]service.SimSwapCheck{{PhoneNumber: "712345678", RequestID: "c"}}, "+254712345678")
	require.True(t, ok)
	assert.Equal(t, "c", got.RequestID)
}
