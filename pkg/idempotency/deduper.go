package idempotency

import "context"

// Deduper decides whether an event reference has been seen before.
// MarkProcessed is a single atomic claim: exactly one caller observes first
// equal to true for a given reference, no matter how many concurrent callers
// or process restarts are involved.
type Deduper interface {
	// MarkProcessed claims the reference. Returns true for the first caller
	// and false for every subsequent one.
	MarkProcessed(ctx context.Context, reference string) (bool, error)

	// Release forgets the reference so a failed operation can be retried.
	Release(ctx context.Context, reference string) error
}
