// Package referral accrues commissions for referred accounts' confirmed
// payments. Only commission-eligible plans count, trial activations never
// do, and each (referrer, referee) pair earns for at most the configured
// number of billing cycles. Hitting the cap is a defined no-op.
//
// The cap is enforced against a durable count of prior earning rows plus a
// storage-level uniqueness constraint on the cycle index, so it survives
// process restarts and concurrent confirmations for the same referee.
package referral
