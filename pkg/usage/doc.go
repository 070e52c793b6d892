// Package usage meters per-feature usage against plan-defined quotas.
//
// Counters are scoped to a billing period and keyed by
// (account, feature, period_start). Each counter snapshots the plan limit at
// period start, so a later plan change never retroactively alters an
// in-progress period. Counters are created lazily on the first increment and
// superseded, never mutated, when a new period begins or the plan changes.
//
// The validation and execution paths are decoupled:
//
//	allowed, info, err := ledger.CanConsume(ctx, accountID, plans.FeatureInvoices)
//	if err != nil || !allowed {
//	    // deny the create; err means storage outage, fail closed
//	}
//	// ... perform the create ...
//	if err := ledger.Increment(ctx, accountID, plans.FeatureInvoices); err != nil {
//	    // the create happened but was not counted; log loudly
//	}
//
// Increment must be called at most once per logical action since every call
// represents one real usage event.
package usage
