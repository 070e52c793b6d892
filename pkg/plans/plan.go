package plans

import (
	"time"
)

// Plan describes a subscription plan and its feature quotas.
// Plans are immutable once loaded; a catalog reload replaces the whole set.
type Plan struct {
	ID                 string                `yaml:"id"`
	Name               string                `yaml:"name"`
	Limits             map[FeatureType]int64 `yaml:"limits"` // -1 represents unlimited
	Period             Period                `yaml:"period"`
	TrialDays          int                   `yaml:"trial_days"`
	Price              Money                 `yaml:"price"`
	CommissionEligible bool                  `yaml:"commission_eligible"`
	Public             bool                  `yaml:"public"` // available for self-service signup
}

// Limit returns the quota for a feature. Features absent from the plan are
// unavailable, which is the most restrictive interpretation.
func (p Plan) Limit(feature FeatureType) int64 {
	limit, ok := p.Limits[feature]
	if !ok {
		return 0
	}
	return limit
}

// IsFree reports whether this is the catalog's fallback plan.
func (p Plan) IsFree() bool {
	return p.ID == FreePlanID
}

// TrialEndsAt calculates when a trial started at the given time ends.
// Returns startedAt unchanged if the plan has no trial.
func (p Plan) TrialEndsAt(startedAt time.Time) time.Time {
	if p.TrialDays <= 0 {
		return startedAt
	}
	return startedAt.AddDate(0, 0, p.TrialDays).UTC()
}

// PeriodEndsAt calculates when a billing period started at the given time ends.
func (p Plan) PeriodEndsAt(startedAt time.Time) time.Time {
	return p.Period.Next(startedAt).UTC()
}

// WindowEndsAt calculates the end of a usage window. Trial plans derive
// their window from TrialDays, paid plans from the billing period.
func (p Plan) WindowEndsAt(startedAt time.Time) time.Time {
	if p.Period == PeriodTrial {
		return p.TrialEndsAt(startedAt)
	}
	return p.PeriodEndsAt(startedAt)
}
