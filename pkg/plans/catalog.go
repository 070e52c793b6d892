package plans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/meterkit/pkg/logger"
)

// Source defines how plans are loaded into the catalog.
type Source interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// Catalog is a static, versioned lookup table of plan configurations.
// Lookups never fail: unknown plan IDs fall back to the free plan so a bad
// or legacy plan value stored on a subscription can never hard-fail metering.
type Catalog struct {
	plans map[string]Plan
	log   *slog.Logger
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithLogger sets the logger used to report lookup anomalies.
func WithLogger(log *slog.Logger) CatalogOption {
	return func(c *Catalog) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCatalog loads plans from the source and validates them.
// The free plan must be present because it is the lookup fallback.
func NewCatalog(ctx context.Context, src Source, opts ...CatalogOption) (*Catalog, error) {
	if src == nil {
		panic("plans: Source is required")
	}

	loaded, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	if err := validatePlans(loaded); err != nil {
		return nil, err
	}

	c := &Catalog{
		plans: loaded,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resolve returns the configuration for a plan ID, falling back to the free
// plan for unknown IDs. The anomaly is logged, never surfaced as an error.
func (c *Catalog) Resolve(ctx context.Context, planID string) Plan {
	if plan, ok := c.plans[planID]; ok {
		return plan
	}
	c.log.LogAttrs(ctx, slog.LevelWarn, "unknown plan id, falling back to free plan",
		logger.PlanID(planID),
	)
	return c.plans[FreePlanID]
}

// Get returns the plan and whether it exists, without the fallback.
func (c *Catalog) Get(planID string) (Plan, bool) {
	plan, ok := c.plans[planID]
	return plan, ok
}

// Free returns the fallback plan configuration.
func (c *Catalog) Free() Plan {
	return c.plans[FreePlanID]
}

// List returns all plans keyed by ID. The returned map is a copy.
func (c *Catalog) List() map[string]Plan {
	out := make(map[string]Plan, len(c.plans))
	for id, p := range c.plans {
		out[id] = p
	}
	return out
}

// validatePlans ensures plan configurations are internally consistent.
// Catches configuration errors at startup rather than during metering.
func validatePlans(plans map[string]Plan) error {
	if _, ok := plans[FreePlanID]; !ok {
		return ErrFreePlanMissing
	}

	for planID, plan := range plans {
		if plan.ID != planID {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan ID mismatch: map key %s != plan.ID %s", planID, plan.ID))
		}
		if !plan.Period.Valid() {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has invalid period %q", planID, plan.Period))
		}
		if plan.TrialDays < 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has negative trial days: %d", planID, plan.TrialDays))
		}
		for feature, limit := range plan.Limits {
			if limit < Unlimited {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has invalid limit %d for %s", planID, limit, feature))
			}
		}
	}
	return nil
}
