package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// UsageResetter reinitializes usage counters when an account lands on a new
// plan or billing period. Implemented by usage.Ledger.
type UsageResetter interface {
	ResetForNewPlan(ctx context.Context, accountID uuid.UUID, newPlanID string, periodStart time.Time) error
}

// ReferralRecorder accrues a referral commission for a confirmed payment.
// Implemented by referral.Ledger.
type ReferralRecorder interface {
	RecordPayment(ctx context.Context, referrerID, refereeID uuid.UUID, planID string, amount plans.Money) error
}

// Deduper marks payment references as processed exactly once.
// Implemented by the idempotency package.
type Deduper interface {
	// MarkProcessed returns true when this caller is the first to see the
	// reference. Subsequent calls return false until Release is called.
	MarkProcessed(ctx context.Context, reference string) (bool, error)

	// Release forgets a reference so a failed confirmation can be retried.
	Release(ctx context.Context, reference string) error
}

// StatusInfo is the read-only view exposed to display surfaces.
type StatusInfo struct {
	PlanID             string     `json:"plan_id"`
	PlanName           string     `json:"plan_name"`
	Status             Status     `json:"status"`
	DaysRemaining      int        `json:"days_remaining"` // -1 when the plan never expires
	Trial              bool       `json:"trial"`
	TrialDaysRemaining int        `json:"trial_days_remaining"`
	HasAccess          bool       `json:"has_access"`
	PeriodEnd          *time.Time `json:"period_end,omitempty"`
}

// Lifecycle drives subscription state transitions: trial start, payment
// confirmation, cancellation. All temporal decisions go through an injectable
// clock so tests can pin time.
type Lifecycle struct {
	store     Store
	catalog   *plans.Catalog
	usage     UsageResetter
	referrals ReferralRecorder
	dedup     Deduper
	log       *slog.Logger
	now       func() time.Time
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithReferrals enables referral commission accrual on eligible payments.
func WithReferrals(r ReferralRecorder) LifecycleOption {
	return func(l *Lifecycle) { l.referrals = r }
}

// WithLogger sets the lifecycle's logger.
func WithLogger(log *slog.Logger) LifecycleOption {
	return func(l *Lifecycle) {
		if log != nil {
			l.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLifecycle creates the subscription state machine service.
// Panics if required dependencies are nil to fail fast during initialization.
func NewLifecycle(store Store, catalog *plans.Catalog, usage UsageResetter, dedup Deduper, opts ...LifecycleOption) *Lifecycle {
	if store == nil {
		panic("subscription: Store is required")
	}
	if catalog == nil {
		panic("subscription: plan catalog is required")
	}
	if usage == nil {
		panic("subscription: UsageResetter is required")
	}
	if dedup == nil {
		panic("subscription: Deduper is required")
	}

	l := &Lifecycle{
		store:   store,
		catalog: catalog,
		usage:   usage,
		dedup:   dedup,
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StartTrial creates the account's initial subscription record. For plans
// with a trial the record starts in trial status with the period ending at
// trial end; the free plan starts active with no end date. Initial usage
// counters are snapshotted from the plan.
func (l *Lifecycle) StartTrial(ctx context.Context, accountID uuid.UUID, planID string, referredBy *uuid.UUID) (*Record, error) {
	plan := l.catalog.Resolve(ctx, planID)
	now := l.now()

	r := &Record{
		AccountID:   accountID,
		PlanID:      plan.ID,
		PeriodStart: now,
		ReferredBy:  referredBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	switch {
	case plan.IsFree():
		r.Status = StatusActive
	case plan.TrialDays > 0:
		trialEnd := plan.TrialEndsAt(now)
		r.Status = StatusTrial
		r.TrialEndsAt = &trialEnd
		r.PeriodEnd = &trialEnd
	default:
		return nil, ErrTrialNotAvailable
	}

	if err := l.store.Create(ctx, r); err != nil {
		return nil, errors.Join(ErrFailedToSave, err)
	}

	if err := l.usage.ResetForNewPlan(ctx, accountID, plan.ID, now); err != nil {
		// Counters materialize lazily on first increment anyway; the record
		// is already committed, so report but do not roll back.
		l.log.LogAttrs(ctx, slog.LevelError, "failed to initialize usage counters",
			logger.AccountID(accountID.String()),
			logger.Error(err),
		)
	}

	l.log.LogAttrs(ctx, slog.LevelInfo, "subscription created",
		logger.AccountID(accountID.String()),
		logger.PlanID(plan.ID),
		slog.String("status", string(r.Status)),
	)
	return r, nil
}

// ConfirmPayment applies an external payment confirmation: the record
// transitions to active on the paid plan with a fresh billing period, usage
// counters are re-snapshotted, and an eligible referral commission accrues.
//
// The operation is idempotent with respect to the payment reference: a
// redelivered webhook is detected through the deduper and ignored. If any
// step after de-duplication fails, the reference is released again so the
// gateway's retry can re-apply the whole transition.
func (l *Lifecycle) ConfirmPayment(ctx context.Context, event PaymentEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	first, err := l.dedup.MarkProcessed(ctx, event.Reference)
	if err != nil {
		return errors.Join(ErrFailedToMarkReference, err)
	}
	if !first {
		l.log.LogAttrs(ctx, slog.LevelInfo, "duplicate payment confirmation ignored",
			logger.AccountID(event.AccountID.String()),
			logger.PaymentReference(event.Reference),
		)
		return nil
	}

	plan := l.catalog.Resolve(ctx, event.PlanID)
	start := event.ConfirmedAt
	if start.IsZero() {
		start = l.now()
	}
	start = start.UTC()
	end := plan.PeriodEndsAt(start)

	var priorStatus Status
	rec, err := l.store.Update(ctx, event.AccountID, func(r *Record) (bool, error) {
		priorStatus = r.Status
		if !CanTransition(r.Status, StatusActive) {
			return false, ErrInvalidState
		}
		r.PlanID = plan.ID
		r.Status = StatusActive
		r.PeriodStart = start
		r.PeriodEnd = &end
		r.TrialEndsAt = nil
		r.CancelledAt = nil
		r.UpdatedAt = l.now()
		return true, nil
	})
	if err != nil {
		l.releaseReference(ctx, event.Reference)
		return err
	}

	if err := l.usage.ResetForNewPlan(ctx, event.AccountID, plan.ID, start); err != nil {
		l.releaseReference(ctx, event.Reference)
		return err
	}

	if l.referrals != nil && rec.ReferredBy != nil && plan.CommissionEligible {
		if err := l.referrals.RecordPayment(ctx, *rec.ReferredBy, event.AccountID, plan.ID, event.Amount); err != nil {
			// The earning cap is enforced durably inside the referral store,
			// so a retry here cannot double-pay. Log and move on rather than
			// failing an already-applied state transition.
			l.log.LogAttrs(ctx, slog.LevelError, "failed to accrue referral commission",
				logger.AccountID(event.AccountID.String()),
				logger.PaymentReference(event.Reference),
				logger.Error(err),
			)
		}
	}

	l.log.LogAttrs(ctx, slog.LevelInfo, "payment confirmed",
		logger.AccountID(event.AccountID.String()),
		logger.PlanID(plan.ID),
		logger.PaymentReference(event.Reference),
		slog.String("prior_status", string(priorStatus)),
	)
	return nil
}

// Cancel marks the subscription cancelled. The period end is left untouched:
// access continues until natural expiry. Cancelling an already-cancelled
// subscription is a logged no-op.
func (l *Lifecycle) Cancel(ctx context.Context, accountID uuid.UUID) error {
	_, err := l.store.Update(ctx, accountID, func(r *Record) (bool, error) {
		if r.Status == StatusCancelled {
			l.log.LogAttrs(ctx, slog.LevelInfo, "subscription already cancelled",
				logger.AccountID(accountID.String()),
			)
			return false, nil
		}
		if !CanTransition(r.Status, StatusCancelled) {
			return false, ErrInvalidState
		}
		now := l.now()
		r.Status = StatusCancelled
		r.CancelledAt = &now
		r.UpdatedAt = now
		return true, nil
	})
	return err
}

// GetStatus returns the read-only subscription view for display.
func (l *Lifecycle) GetStatus(ctx context.Context, accountID uuid.UUID) (StatusInfo, error) {
	r, err := l.store.Get(ctx, accountID)
	if err != nil {
		return StatusInfo{}, err
	}

	plan := l.catalog.Resolve(ctx, r.PlanID)
	now := l.now()

	return StatusInfo{
		PlanID:             r.PlanID,
		PlanName:           plan.Name,
		Status:             r.Status,
		DaysRemaining:      r.DaysRemainingAt(now),
		Trial:              r.IsTrialing(),
		TrialDaysRemaining: r.TrialDaysRemainingAt(now),
		HasAccess:          r.HasAccessAt(now),
		PeriodEnd:          r.PeriodEnd,
	}, nil
}

func (l *Lifecycle) releaseReference(ctx context.Context, reference string) {
	if err := l.dedup.Release(ctx, reference); err != nil {
		l.log.LogAttrs(ctx, slog.LevelError, "failed to release payment reference",
			logger.PaymentReference(reference),
			logger.Error(err),
		)
	}
}
