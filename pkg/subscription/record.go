package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Record represents an account's subscription state.
// Each account owns exactly one record; AccountID is the primary key.
// Records are never physically deleted, only superseded by updates.
type Record struct {
	AccountID   uuid.UUID // primary key - one subscription per account
	PlanID      string
	Status      Status
	PeriodStart time.Time
	PeriodEnd   *time.Time // nil when the plan never expires (free plan)
	TrialEndsAt *time.Time // set only while status is trial
	ReferredBy  *uuid.UUID // account that referred this one, if any
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r *Record) IsTrialing() bool {
	return r.Status == StatusTrial
}

func (r *Record) IsActive() bool {
	return r.Status == StatusActive
}

func (r *Record) IsCancelled() bool {
	return r.Status == StatusCancelled
}

// IsExpiredAt reports whether the billing period has lapsed at the given time.
// Records without an end date never expire.
func (r *Record) IsExpiredAt(now time.Time) bool {
	if r.PeriodEnd == nil {
		return false
	}
	return !now.Before(*r.PeriodEnd)
}

// HasAccessAt reports whether the account retains access at the given time.
// A cancelled subscription keeps access until its natural period end; the
// "cancelled but not yet expired" sub-state is derived here rather than
// stored.
func (r *Record) HasAccessAt(now time.Time) bool {
	switch r.Status {
	case StatusTrial, StatusActive:
		return !r.IsExpiredAt(now)
	case StatusCancelled:
		return !r.IsExpiredAt(now)
	default:
		return false
	}
}

// DaysRemainingAt returns whole days until the period ends, rounding partial
// days up. Returns 0 once expired and -1 when the record has no end date.
func (r *Record) DaysRemainingAt(now time.Time) int {
	if r.PeriodEnd == nil {
		return -1
	}
	remaining := r.PeriodEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := remaining.Hours() / 24
	return int(days + 0.5)
}

// TrialDaysRemainingAt returns the number of days remaining in the trial at a
// given time. Returns 0 if not in trial or the trial has expired.
// This method is useful for testing with fixed time values.
func (r *Record) TrialDaysRemainingAt(now time.Time) int {
	if !r.IsTrialing() || r.TrialEndsAt == nil {
		return 0
	}
	remaining := r.TrialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	// Round up partial days for better UX
	days := remaining.Hours() / 24
	return int(days + 0.5)
}
