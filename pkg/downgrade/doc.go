// Package downgrade moves expired subscriptions onto the free plan. It is
// the only consumer of the monitor's expiry events and the only writer of
// auto-downgrade audit entries. Idempotence comes from checking the record's
// current state under the store's write lock, so retried and overlapping
// scans converge on the same final state.
package downgrade
