package usage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// BillingPeriod describes the usage window an account is currently in.
type BillingPeriod struct {
	PlanID string
	Start  time.Time
	End    time.Time
}

// PeriodResolver resolves the current billing period for an account from its
// subscription record. A missing record is a caller error: every account must
// own exactly one subscription.
type PeriodResolver interface {
	CurrentPeriod(ctx context.Context, accountID uuid.UUID) (BillingPeriod, error)
}

// Ledger meters per-feature usage against plan quotas. The check and the
// increment are deliberately separate operations: CanConsume is read-only so
// routes can validate on every write attempt, and Increment is called exactly
// once after the write succeeds.
type Ledger struct {
	store    Store
	catalog  *plans.Catalog
	resolver PeriodResolver
	log      *slog.Logger
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLogger sets the ledger's logger.
func WithLogger(log *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLedger creates a usage ledger.
// Panics if any required dependency is nil to fail fast during initialization.
func NewLedger(store Store, catalog *plans.Catalog, resolver PeriodResolver, opts ...LedgerOption) *Ledger {
	if store == nil {
		panic("usage: Store is required")
	}
	if catalog == nil {
		panic("usage: plan catalog is required")
	}
	if resolver == nil {
		panic("usage: PeriodResolver is required")
	}

	l := &Ledger{
		store:    store,
		catalog:  catalog,
		resolver: resolver,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CanConsume reports whether the account may create one more instance of the
// feature in the current billing period. It never mutates state: when no
// counter row exists yet the check runs against the plan quota with zero
// usage, and the row materializes later on the first Increment.
//
// A storage failure fails closed: the action is denied and the error is
// returned so unmetered usage can never slip through an outage.
func (l *Ledger) CanConsume(ctx context.Context, accountID uuid.UUID, feature plans.FeatureType) (bool, Info, error) {
	period, err := l.resolver.CurrentPeriod(ctx, accountID)
	if err != nil {
		return false, Info{}, errors.Join(ErrFailedToReadUsage, err)
	}

	plan := l.catalog.Resolve(ctx, period.PlanID)
	limit := plan.Limit(feature)

	counter, err := l.store.Find(ctx, accountID, feature, period.Start)
	switch {
	case errors.Is(err, ErrCounterNotFound):
		counter = &Counter{Used: 0, Limit: limit}
	case err != nil:
		return false, Info{}, errors.Join(ErrFailedToReadUsage, err)
	}

	info := Info{Current: counter.Used, Limit: counter.Limit}
	return !counter.Exhausted(), info, nil
}

// Increment records one usage event for the feature, creating the
// current-period counter lazily on first use. The underlying store applies
// the increment atomically, so two near-simultaneous actions by the same
// account both count. Each call represents one real usage event; callers
// must invoke it at most once per logical action.
func (l *Ledger) Increment(ctx context.Context, accountID uuid.UUID, feature plans.FeatureType) error {
	period, err := l.resolver.CurrentPeriod(ctx, accountID)
	if err != nil {
		return errors.Join(ErrFailedToIncrement, err)
	}

	plan := l.catalog.Resolve(ctx, period.PlanID)

	if err := l.store.Increment(ctx, Counter{
		AccountID:   accountID,
		Feature:     feature,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Limit:       plan.Limit(feature),
	}); err != nil {
		return errors.Join(ErrFailedToIncrement, err)
	}
	return nil
}

// ResetForNewPlan snapshots a fresh counter set for the plan the account just
// moved to. Old-period counters are never touched; they remain as an
// immutable usage history. The operation is idempotent for a given
// (account, period start): re-running it after a partial failure skips rows
// that already exist.
func (l *Ledger) ResetForNewPlan(ctx context.Context, accountID uuid.UUID, newPlanID string, periodStart time.Time) error {
	plan := l.catalog.Resolve(ctx, newPlanID)
	periodEnd := plan.WindowEndsAt(periodStart)

	counters := make([]Counter, 0, len(plans.AllFeatures))
	for _, feature := range plans.AllFeatures {
		counters = append(counters, Counter{
			AccountID:   accountID,
			Feature:     feature,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			Used:        0,
			Limit:       plan.Limit(feature),
		})
	}

	if err := l.store.CreateBatch(ctx, counters); err != nil {
		return errors.Join(ErrFailedToResetUsage, err)
	}

	l.log.LogAttrs(ctx, slog.LevelInfo, "usage counters reset for new plan",
		logger.AccountID(accountID.String()),
		logger.PlanID(plan.ID),
		slog.Time("period_start", periodStart),
	)
	return nil
}

// Snapshot returns current usage for every feature on the account's plan.
// Missing counter rows read as zero usage. Intended for dashboards; counter
// read failures degrade to zeros instead of failing the whole snapshot.
func (l *Ledger) Snapshot(ctx context.Context, accountID uuid.UUID) (map[plans.FeatureType]Info, error) {
	period, err := l.resolver.CurrentPeriod(ctx, accountID)
	if err != nil {
		return nil, errors.Join(ErrFailedToReadUsage, err)
	}

	plan := l.catalog.Resolve(ctx, period.PlanID)

	out := make(map[plans.FeatureType]Info, len(plan.Limits))
	for feature, limit := range plan.Limits {
		info := Info{Current: 0, Limit: limit}
		if counter, err := l.store.Find(ctx, accountID, feature, period.Start); err == nil {
			info.Current = counter.Used
			info.Limit = counter.Limit
		}
		out[feature] = info
	}
	return out, nil
}
