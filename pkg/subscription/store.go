package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UpdateFunc mutates a record in place. Returning changed=false skips the
// write entirely, which is how idempotent consumers (auto-downgrade, repeated
// cancels) turn stale events into no-ops. Returning an error aborts the
// update without persisting anything.
type UpdateFunc func(r *Record) (changed bool, err error)

// Store defines the persistence interface for subscription records.
//
// Update is the per-account serialization point: implementations must
// guarantee that concurrent Update calls for the same account are applied one
// at a time against the latest state (row-level lock in Postgres, per-store
// mutex in memory). This is what keeps payment confirmations and downgrade
// events from interleaving into a half-applied state.
type Store interface {
	// Get retrieves a record by account ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, accountID uuid.UUID) (*Record, error)

	// Create inserts a new record. Returns ErrAlreadyExists if the account
	// already owns one.
	Create(ctx context.Context, r *Record) error

	// Update loads the record, applies fn under the account's write lock, and
	// persists the result when fn reports a change. The returned record is
	// the post-update state.
	Update(ctx context.Context, accountID uuid.UUID, fn UpdateFunc) (*Record, error)

	// ListDueForExpiry returns records in trial or active status whose period
	// ended before now. Records with no end date are never returned.
	ListDueForExpiry(ctx context.Context, now time.Time) ([]Record, error)

	// ListExpiringWithin returns records in trial or active status whose
	// period ends in [now, now+days).
	ListExpiringWithin(ctx context.Context, now time.Time, days int) ([]Record, error)

	// TryMarkWarned atomically records that the warning for a specific
	// threshold has been sent for the given billing period. Returns true only
	// for the caller that created the marker, so each threshold fires at most
	// once per record per period even across overlapping scans.
	TryMarkWarned(ctx context.Context, accountID uuid.UUID, thresholdDays int, periodEnd time.Time) (bool, error)
}
