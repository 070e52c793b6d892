// Package monitor runs the recurring expiration scan: a fixed-interval pass
// plus a broader once-daily sweep. It emits expiry events to the downgrade
// service and advance warnings at configured days-remaining thresholds, each
// threshold at most once per record per billing period.
//
// The monitor holds no state between runs and takes no distributed lock;
// overlapping scans from multiple instances are safe because expiry handling
// is idempotent and warning markers are claimed atomically in the store.
package monitor
