package subscription_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/subscription"
)

func TestPeriodSource_CurrentPeriod(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("fixed period end is used directly", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		accountID := uuid.New()
		end := frozenNow.AddDate(0, 1, 0)
		require.NoError(t, store.Create(ctx, &subscription.Record{
			AccountID:   accountID,
			PlanID:      "starter",
			Status:      subscription.StatusActive,
			PeriodStart: frozenNow,
			PeriodEnd:   &end,
		}))

		src := subscription.NewPeriodSource(store, newCatalog(t),
			subscription.WithPeriodClock(fixedClock(frozenNow.AddDate(0, 0, 10))))

		period, err := src.CurrentPeriod(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, "starter", period.PlanID)
		assert.Equal(t, frozenNow, period.Start)
		assert.Equal(t, end, period.End)
	})

	t.Run("free plan windows roll forward", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		accountID := uuid.New()
		require.NoError(t, store.Create(ctx, &subscription.Record{
			AccountID:   accountID,
			PlanID:      "free",
			Status:      subscription.StatusActive,
			PeriodStart: frozenNow,
		}))

		// Three and a half months after landing on the free plan the account
		// is in its fourth monthly window.
		now := frozenNow.AddDate(0, 3, 15)
		src := subscription.NewPeriodSource(store, newCatalog(t),
			subscription.WithPeriodClock(fixedClock(now)))

		period, err := src.CurrentPeriod(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, frozenNow.AddDate(0, 3, 0), period.Start)
		assert.Equal(t, frozenNow.AddDate(0, 4, 0), period.End)
	})

	t.Run("unknown account", func(t *testing.T) {
		t.Parallel()
		src := subscription.NewPeriodSource(subscription.NewMemoryStore(), newCatalog(t))
		_, err := src.CurrentPeriod(ctx, uuid.New())
		require.ErrorIs(t, err, subscription.ErrNotFound)
	})
}
