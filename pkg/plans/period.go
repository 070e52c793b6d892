package plans

import (
	"fmt"
	"time"
)

// Period represents the billing window over which usage accumulates.
type Period string

const (
	PeriodTrial   Period = "trial"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// Valid reports whether the period is one of the known billing windows.
func (p Period) Valid() bool {
	switch p {
	case PeriodTrial, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// Next returns the end of a billing window that starts at the given time.
// Trial periods have no intrinsic length; callers derive trial windows from
// Plan.TrialDays instead.
func (p Period) Next(start time.Time) time.Time {
	switch p {
	case PeriodWeekly:
		return start.AddDate(0, 0, 7)
	case PeriodMonthly:
		return start.AddDate(0, 1, 0)
	case PeriodYearly:
		return start.AddDate(1, 0, 0)
	default:
		return start
	}
}

// WindowContaining returns the billing window [start, end) that contains now,
// advancing fixed-length windows from the anchor. Accounts on the free plan
// have no subscription end date, so their usage windows roll forward from the
// moment they landed on the plan.
func (p Period) WindowContaining(anchor, now time.Time) (start, end time.Time) {
	start = anchor
	end = p.Next(start)
	if !end.After(start) {
		// Degenerate period lengths would loop forever.
		return anchor, anchor
	}
	for !now.Before(end) {
		start = end
		end = p.Next(start)
	}
	return start, end
}

// UnmarshalYAML validates periods read from catalog files.
func (p *Period) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	period := Period(s)
	if !period.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	*p = period
	return nil
}
