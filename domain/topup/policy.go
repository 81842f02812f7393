package topup

import (
	"fmt"
	"time"
)

const DefaultSwapWindowMonths = 3

// RecentSwapPolicy declines a top-up when the SIM was swapped within the
// trailing Months calendar months.
type RecentSwapPolicy struct {
	Months int
}

// Evaluate returns approve=false with a reason when lastSwap falls inside the
// window ending at now. A nil lastSwap means no swap on record.
func (p RecentSwapPolicy) Evaluate(lastSwap *time.Time, now time.Time) (approve bool, reason string) {
	if lastSwap == nil {
		return true, ""
	}
	months := p.Months
	if months <= 0 {
		months = DefaultSwapWindowMonths
	}
	windowStart := now.AddDate(0, -months, 0)
	if !lastSwap.Before(windowStart) {
		return false, fmt.Sprintf("SIM swapped on %s, within the last %d months", lastSwap.Format("2006-01-02"), months)
	}
	return true, ""
}
