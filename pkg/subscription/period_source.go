package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

// PeriodSource resolves the current usage window for an account from its
// subscription record. It satisfies usage.PeriodResolver and exists as a
// standalone type so the usage ledger and the lifecycle service can be
// constructed without a dependency cycle.
type PeriodSource struct {
	store   Store
	catalog *plans.Catalog
	now     func() time.Time
}

// PeriodSourceOption configures a PeriodSource.
type PeriodSourceOption func(*PeriodSource)

// WithPeriodClock overrides the time source. Intended for tests.
func WithPeriodClock(now func() time.Time) PeriodSourceOption {
	return func(s *PeriodSource) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPeriodSource creates a resolver over the given store and catalog.
func NewPeriodSource(store Store, catalog *plans.Catalog, opts ...PeriodSourceOption) *PeriodSource {
	if store == nil {
		panic("subscription: Store is required")
	}
	if catalog == nil {
		panic("subscription: plan catalog is required")
	}
	s := &PeriodSource{
		store:   store,
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentPeriod returns the billing window the account is in right now.
// Records with a fixed period end use it directly. Records with no end date
// (the free plan) roll fixed-length windows forward from the period anchor,
// so free usage still resets on plan cadence.
func (s *PeriodSource) CurrentPeriod(ctx context.Context, accountID uuid.UUID) (usage.BillingPeriod, error) {
	r, err := s.store.Get(ctx, accountID)
	if err != nil {
		return usage.BillingPeriod{}, err
	}

	if r.PeriodEnd != nil {
		return usage.BillingPeriod{
			PlanID: r.PlanID,
			Start:  r.PeriodStart,
			End:    *r.PeriodEnd,
		}, nil
	}

	plan := s.catalog.Resolve(ctx, r.PlanID)
	start, end := plan.Period.WindowContaining(r.PeriodStart, s.now())
	return usage.BillingPeriod{PlanID: r.PlanID, Start: start, End: end}, nil
}
