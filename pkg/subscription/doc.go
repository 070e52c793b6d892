// Package subscription tracks each account's subscription state and enforces
// the lifecycle transitions: trial to active on payment confirmation, trial
// or active to expired when the period lapses, and cancellation that keeps
// access until natural expiry.
//
// The hard correctness boundary is ConfirmPayment: webhook redeliveries are
// de-duplicated by payment reference before any state is touched, and the
// record mutation itself runs under the store's per-account write lock so a
// concurrent downgrade can never interleave into a half-applied state.
//
//	lifecycle := subscription.NewLifecycle(store, catalog, ledger, deduper,
//	    subscription.WithReferrals(referralLedger),
//	)
//
//	err := lifecycle.ConfirmPayment(ctx, subscription.PaymentEvent{
//	    AccountID: accountID,
//	    PlanID:    "silver_monthly",
//	    Amount:    plans.Money{Amount: 999, Currency: "USD"},
//	    Reference: "pay_8f3k2",
//	})
package subscription
