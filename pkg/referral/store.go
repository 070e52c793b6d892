package referral

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// Store persists referral earnings and referrer balances.
//
// The earning-window cap must hold across process restarts and concurrent
// payment confirmations for the same referee, so implementations back
// CountForPair with a durable count and enforce uniqueness of
// (referrer, referee, cycle_index) at the storage layer.
type Store interface {
	// CountForPair returns how many earnings exist for the exact
	// (referrer, referee) pair.
	CountForPair(ctx context.Context, referrerID, refereeID uuid.UUID) (int, error)

	// Append inserts a new earning row. Returns ErrDuplicateCycle when the
	// (referrer, referee, cycle_index) triple already exists, which signals a
	// concurrent accrual for the same cycle.
	Append(ctx context.Context, e Earning) error

	// ListByReferrer returns a referrer's earnings, newest first.
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]Earning, error)

	// Credit adds the amount to the referrer's withdrawable balance.
	Credit(ctx context.Context, accountID uuid.UUID, amount plans.Money) error

	// Balance returns the withdrawable balance in the given currency.
	Balance(ctx context.Context, accountID uuid.UUID, currency string) (int64, error)
}
