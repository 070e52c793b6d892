// Package plans provides the static plan catalog for subscription metering.
// A plan maps feature types to quotas and carries the billing period length,
// trial length, price, and referral commission eligibility.
//
// The catalog is a pure lookup table with one deliberate behavior: resolving
// an unknown plan ID returns the free plan's configuration instead of an
// error, so a stale plan value on a subscription record degrades to the most
// restrictive limits rather than failing the request path.
//
// Basic usage:
//
//	src := plans.NewYAMLSource("config/plans.yml")
//	catalog, err := plans.NewCatalog(ctx, src)
//	if err != nil {
//	    // handle error
//	}
//
//	plan := catalog.Resolve(ctx, "silver_monthly")
//	limit := plan.Limit(plans.FeatureInvoices)
package plans
