package usage_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

var periodStart = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

type staticResolver struct {
	planID string
	err    error
}

func (r staticResolver) CurrentPeriod(_ context.Context, _ uuid.UUID) (usage.BillingPeriod, error) {
	if r.err != nil {
		return usage.BillingPeriod{}, r.err
	}
	return usage.BillingPeriod{
		PlanID: r.planID,
		Start:  periodStart,
		End:    periodStart.AddDate(0, 1, 0),
	}, nil
}

func newCatalog(t *testing.T) *plans.Catalog {
	t.Helper()
	c, err := plans.NewCatalog(context.Background(), plans.NewStaticSource(map[string]plans.Plan{
		"free": {
			ID:     "free",
			Period: plans.PeriodMonthly,
			Limits: map[plans.FeatureType]int64{
				plans.FeatureInvoices: 5,
				plans.FeatureExpenses: 5,
			},
		},
		"starter": {
			ID:     "starter",
			Period: plans.PeriodMonthly,
			Limits: map[plans.FeatureType]int64{
				plans.FeatureInvoices: 100,
				plans.FeatureExpenses: 500,
				plans.FeatureSales:    plans.Unlimited,
			},
		},
	}))
	require.NoError(t, err)
	return c
}

func TestLedger_CanConsume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("no counter row reads as zero usage", func(t *testing.T) {
		t.Parallel()
		store := usage.NewMemoryStore()
		ledger := usage.NewLedger(store, newCatalog(t), staticResolver{planID: "starter"})

		allowed, info, err := ledger.CanConsume(ctx, accountID, plans.FeatureInvoices)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, usage.Info{Current: 0, Limit: 100}, info)

		// The check must not materialize a row.
		_, err = store.Find(ctx, accountID, plans.FeatureInvoices, periodStart)
		assert.ErrorIs(t, err, usage.ErrCounterNotFound)
	})

	t.Run("denies at the limit", func(t *testing.T) {
		t.Parallel()
		store := usage.NewMemoryStore()
		ledger := usage.NewLedger(store, newCatalog(t), staticResolver{planID: "starter"})

		for i := 0; i < 499; i++ {
			require.NoError(t, ledger.Increment(ctx, accountID, plans.FeatureExpenses))
		}

		allowed, info, err := ledger.CanConsume(ctx, accountID, plans.FeatureExpenses)
		require.NoError(t, err)
		assert.True(t, allowed, "499 of 500 used, one left")
		assert.Equal(t, int64(499), info.Current)

		require.NoError(t, ledger.Increment(ctx, accountID, plans.FeatureExpenses))

		allowed, info, err = ledger.CanConsume(ctx, accountID, plans.FeatureExpenses)
		require.NoError(t, err)
		assert.False(t, allowed, "500 of 500 used")
		assert.Equal(t, usage.Info{Current: 500, Limit: 500}, info)
	})

	t.Run("unlimited feature never exhausts", func(t *testing.T) {
		t.Parallel()
		store := usage.NewMemoryStore()
		ledger := usage.NewLedger(store, newCatalog(t), staticResolver{planID: "starter"})

		for i := 0; i < 10; i++ {
			require.NoError(t, ledger.Increment(ctx, accountID, plans.FeatureSales))
		}

		allowed, info, err := ledger.CanConsume(ctx, accountID, plans.FeatureSales)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, usage.Info{Current: 10, Limit: plans.Unlimited}, info)
	})

	t.Run("feature absent from plan is unavailable", func(t *testing.T) {
		t.Parallel()
		ledger := usage.NewLedger(usage.NewMemoryStore(), newCatalog(t), staticResolver{planID: "free"})

		allowed, info, err := ledger.CanConsume(ctx, accountID, plans.FeatureProducts)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, usage.Info{Current: 0, Limit: 0}, info)
	})

	t.Run("fails closed on resolver error", func(t *testing.T) {
		t.Parallel()
		ledger := usage.NewLedger(usage.NewMemoryStore(), newCatalog(t),
			staticResolver{err: errors.New("db down")})

		allowed, _, err := ledger.CanConsume(ctx, accountID, plans.FeatureInvoices)
		require.ErrorIs(t, err, usage.ErrFailedToReadUsage)
		assert.False(t, allowed)
	})

	t.Run("fails closed on store error", func(t *testing.T) {
		t.Parallel()
		ledger := usage.NewLedger(failingStore{}, newCatalog(t), staticResolver{planID: "starter"})

		allowed, _, err := ledger.CanConsume(ctx, accountID, plans.FeatureInvoices)
		require.ErrorIs(t, err, usage.ErrFailedToReadUsage)
		assert.False(t, allowed)
	})
}

func TestLedger_Increment_Concurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	accountID := uuid.New()
	store := usage.NewMemoryStore()
	ledger := usage.NewLedger(store, newCatalog(t), staticResolver{planID: "starter"})

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ledger.Increment(ctx, accountID, plans.FeatureInvoices)
		}()
	}
	wg.Wait()

	c, err := store.Find(ctx, accountID, plans.FeatureInvoices, periodStart)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), c.Used, "no increment may be lost")
}

func TestLedger_ResetForNewPlan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("creates zeroed counters for every feature", func(t *testing.T) {
		t.Parallel()
		store := usage.NewMemoryStore()
		ledger := usage.NewLedger(store, newCatalog(t), staticResolver{planID: "starter"})

		newStart := periodStart.AddDate(0, 1, 0)
		require.NoError(t, ledger.ResetForNewPlan(ctx, accountID, "starter", newStart))

		counters, err := store.ListByAccount(ctx, accountID)
		require.NoError(t, err)
		require.Len(t, counters, len(plans.AllFeatures))
		for _, c := range counters {
			assert.Equal(t, int64(0), c.Used)
			assert.Equal(t, newStart, c.PeriodStart)
		}
	})

	t.Run("old period counters survive a reset", func(t *testing.T) {
		t.Parallel()
		store := usage.NewMemoryStore()
		ledger := usage.NewLedger(store, newCatalog(t), staticResolver{planID: "starter"})

		require.NoError(t, ledger.Increment(ctx, accountID, plans.FeatureExpenses))
		require.NoError(t, ledger.ResetForNewPlan(ctx, accountID, "free", periodStart.AddDate(0, 1, 0)))

		old, err := store.Find(ctx, accountID, plans.FeatureExpenses, periodStart)
		require.NoError(t, err)
		assert.Equal(t, int64(1), old.Used, "history is immutable")
	})

	t.Run("retry skips existing rows", func(t *testing.T) {
		t.Parallel()
		store := usage.NewMemoryStore()
		ledger := usage.NewLedger(store, newCatalog(t), staticResolver{planID: "starter"})

		require.NoError(t, ledger.ResetForNewPlan(ctx, accountID, "starter", periodStart))
		require.NoError(t, ledger.Increment(ctx, accountID, plans.FeatureInvoices))
		require.NoError(t, ledger.ResetForNewPlan(ctx, accountID, "starter", periodStart))

		c, err := store.Find(ctx, accountID, plans.FeatureInvoices, periodStart)
		require.NoError(t, err)
		assert.Equal(t, int64(1), c.Used, "retried reset must not zero the counter")
	})

	t.Run("snapshotted limit ignores later plan changes", func(t *testing.T) {
		t.Parallel()
		store := usage.NewMemoryStore()
		ledger := usage.NewLedger(store, newCatalog(t), staticResolver{planID: "starter"})

		require.NoError(t, ledger.ResetForNewPlan(ctx, accountID, "starter", periodStart))
		c, err := store.Find(ctx, accountID, plans.FeatureExpenses, periodStart)
		require.NoError(t, err)
		assert.Equal(t, int64(500), c.Limit)
	})
}

func TestLedger_Snapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	accountID := uuid.New()
	store := usage.NewMemoryStore()
	ledger := usage.NewLedger(store, newCatalog(t), staticResolver{planID: "free"})

	require.NoError(t, ledger.Increment(ctx, accountID, plans.FeatureInvoices))
	require.NoError(t, ledger.Increment(ctx, accountID, plans.FeatureInvoices))

	snap, err := ledger.Snapshot(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, usage.Info{Current: 2, Limit: 5}, snap[plans.FeatureInvoices])
	assert.Equal(t, usage.Info{Current: 0, Limit: 5}, snap[plans.FeatureExpenses])
	// Only features the plan defines appear in the snapshot.
	_, ok := snap[plans.FeatureProducts]
	assert.False(t, ok)
}

type failingStore struct{}

func (failingStore) Find(context.Context, uuid.UUID, plans.FeatureType, time.Time) (*usage.Counter, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Increment(context.Context, usage.Counter) error {
	return errors.New("connection refused")
}

func (failingStore) CreateBatch(context.Context, []usage.Counter) error {
	return errors.New("connection refused")
}

func (failingStore) ListByAccount(context.Context, uuid.UUID) ([]usage.Counter, error) {
	return nil, errors.New("connection refused")
}
