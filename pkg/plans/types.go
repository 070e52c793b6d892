package plans

// FeatureType represents a metered capability on a plan.
type FeatureType string

const (
	FeatureInvoices FeatureType = "invoices"
	FeatureExpenses FeatureType = "expenses"
	FeatureSales    FeatureType = "sales"
	FeatureProducts FeatureType = "products"
)

// AllFeatures lists every metered feature type. Used when snapshotting
// counters for a new billing period.
var AllFeatures = []FeatureType{
	FeatureInvoices,
	FeatureExpenses,
	FeatureSales,
	FeatureProducts,
}

const (
	// Unlimited represents a feature with no limit (-1 chosen for SQL compatibility).
	Unlimited int64 = -1

	// FreePlanID is the catalog fallback plan. Every catalog must define it.
	FreePlanID = "free"
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `yaml:"amount"`
	Currency string `yaml:"currency"`
}
