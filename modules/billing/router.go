package billing

import (
	"github.com/go-chi/chi/v5"
)

// RouterOptions configures the billing module endpoints. Subscriptions and
// Payments are required; Usage is optional and only mounted if provided.
type RouterOptions struct {
	Subscriptions SubscriptionReader
	Payments      PaymentConfirmer
	Usage         UsageReader
}

// Router builds the billing module router.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(billing.RouterOptions{
//	    Subscriptions: lifecycle,
//	    Payments:      lifecycle,
//	    Usage:         ledger,
//	}))
func Router(opts RouterOptions) chi.Router {
	if opts.Subscriptions == nil {
		panic("billing: subscription reader is required")
	}
	if opts.Payments == nil {
		panic("billing: payment confirmer is required")
	}

	r := chi.NewRouter()

	r.Get("/subscription", handleGetStatus(opts.Subscriptions))
	if opts.Usage != nil {
		r.Get("/usage", handleGetUsage(opts.Usage))
	}

	// Gateway adapters post verified confirmations here; no account context
	// is required since the payload carries the account id.
	r.Post("/webhooks/payment", handlePaymentWebhook(opts.Payments))

	return r
}
