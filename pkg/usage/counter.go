package usage

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// Counter tracks usage of one feature for one account within one billing
// period. The limit is a denormalized snapshot of the plan quota at period
// start, so later plan changes never retroactively alter an in-progress
// period. Counters are superseded by new rows, never mutated in place, which
// keeps old periods available as an audit trail.
type Counter struct {
	AccountID   uuid.UUID
	Feature     plans.FeatureType
	PeriodStart time.Time
	PeriodEnd   time.Time
	Used        int64
	Limit       int64 // -1 represents unlimited
}

// Remaining returns how many uses are left in the period, or -1 for unlimited.
func (c Counter) Remaining() int64 {
	if c.Limit == plans.Unlimited {
		return plans.Unlimited
	}
	if c.Used >= c.Limit {
		return 0
	}
	return c.Limit - c.Used
}

// Exhausted reports whether the counter has reached its limit.
func (c Counter) Exhausted() bool {
	return c.Limit != plans.Unlimited && c.Used >= c.Limit
}

// Info contains the current usage and limit for a feature.
type Info struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
}
