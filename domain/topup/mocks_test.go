package topup

import (
	"context"
	"sync"
	"time"

	"sim-swap-topup/infrastructure/service"
)

var fixedNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeInsights struct {
	mu        sync.Mutex
	ids       []string
	err       error
	calls     int
	lastPhone string
}

func (f *fakeInsights) CheckSimSwapState(_ context.Context, phoneNumbers []string) ([]service.SimSwapCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.lastPhone = phoneNumbers[0]
	id := f.ids[0]
	f.ids = f.ids[1:]
	return []service.SimSwapCheck{{PhoneNumber: phoneNumbers[0], RequestID: id}}, nil
}

func (f *fakeInsights) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDisburser struct {
	mu     sync.Mutex
	calls  []service.Disbursement
	errs   []error
	delay  time.Duration
	prefix string
}

func (f *fakeDisburser) Send(_ context.Context, input service.Disbursement) (service.DisbursementReceipt, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, input)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return service.DisbursementReceipt{}, err
		}
	}
	prefix := f.prefix
	if prefix == "" {
		prefix = "ATQid_"
	}
	return service.DisbursementReceipt{Confirmation: prefix + input.PhoneNumber}, nil
}

func (f *fakeDisburser) Calls() []service.Disbursement {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]service.Disbursement, len(f.calls))
	copy(out, f.calls)
	return out
}

type scheduled struct {
	correlationID string
	attempt       int
}

type fakeRetries struct {
	mu    sync.Mutex
	items []scheduled
}

func (f *fakeRetries) Schedule(_ context.Context, correlationID string, attempt int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, scheduled{correlationID, attempt})
	return nil
}

func (f *fakeRetries) Items() []scheduled {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]scheduled, len(f.items))
	copy(out, f.items)
	return out
}

var testRetention = Retention{Pending: 24 * time.Hour, Resolved: 72 * time.Hour}

func newMemoryRepository() *MemoryRepository {
	r := NewMemoryRepository(0)
	r.now = clock
	return r
}

type fixture struct {
	repository *MemoryRepository
	insights   *fakeInsights
	disburser  *fakeDisburser
	retries    *fakeRetries
	intake     *Intake
	engine     *Engine
}

func newFixture(ids ...string) *fixture {
	f := &fixture{
		repository: newMemoryRepository(),
		insights:   &fakeInsights{ids: ids},
		disburser:  &fakeDisburser{},
		retries:    &fakeRetries{},
	}
	f.intake = NewIntake(f.repository, f.insights, IntakeOptions{
		CountryCode:  "+254",
		CurrencyCode: "KES",
		Retention:    testRetention,
	})
	f.intake.now = clock
	f.engine = NewEngine(f.repository, f.disburser, f.retries, EngineOptions{
		Policy:      RecentSwapPolicy{Months: 3},
		Retention:   testRetention,
		MaxAttempts: 3,
	})
	f.engine.now = clock
	return f
}

func monthsAgo(n int) string {
	return fixedNow.AddDate(0, -n, 0).Format("2006-01-02")
}
