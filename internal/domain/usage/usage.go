// Package usage models embedding token consumption reports.
package usage

import (
	"fmt"

	"github.com/kailas-cloud/listingsearch/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name; empty means day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", domain.NewValidationError("period", fmt.Sprintf("must be %q or %q", PeriodDay, PeriodMonth))
	}
}

// Report is the embedding token budget state for one period.
// Timestamps are unix millis; Limit and Remaining are -1 when the period is unlimited.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	used        int64
	limit       int64
	remaining   int64
}

// NewReport creates a usage report.
func NewReport(period Period, start, end, used, limit, remaining int64) Report {
	if limit <= 0 {
		limit, remaining = -1, -1
	}
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		used:        used,
		limit:       limit,
		remaining:   remaining,
	}
}

// Period returns the aggregation granularity.
func (r Report) Period() Period { return r.period }

// PeriodStart returns the period start (unix millis).
func (r Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end, which is also when the budget resets (unix millis).
func (r Report) PeriodEnd() int64 { return r.periodEnd }

// TokensUsed returns tokens consumed in the period.
func (r Report) TokensUsed() int64 { return r.used }

// TokensLimit returns the token cap.
func (r Report) TokensLimit() int64 { return r.limit }

// TokensRemaining returns tokens left.
func (r Report) TokensRemaining() int64 { return r.remaining }

// IsExhausted reports whether a capped budget is spent.
func (r Report) IsExhausted() bool { return r.limit > 0 && r.remaining <= 0 }
