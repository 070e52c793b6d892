package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// Store defines the persistence interface for usage counters.
// The (account, feature, period_start) triple is unique.
type Store interface {
	// Find retrieves the counter for a specific period.
	// Returns ErrCounterNotFound if no counter row exists yet.
	Find(ctx context.Context, accountID uuid.UUID, feature plans.FeatureType, periodStart time.Time) (*Counter, error)

	// Increment adds one use to the counter identified by c, creating the row
	// lazily with Used=1 if it does not exist. Implementations must apply the
	// increment atomically at the storage layer so concurrent calls for the
	// same counter are never lost.
	Increment(ctx context.Context, c Counter) error

	// CreateBatch inserts fresh counters, skipping any whose
	// (account, feature, period_start) already exists. Existing rows are left
	// untouched, which makes a retried reset a no-op.
	CreateBatch(ctx context.Context, counters []Counter) error

	// ListByAccount returns all counters for an account, newest period first.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Counter, error)
}
