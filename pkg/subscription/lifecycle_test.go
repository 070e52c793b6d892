package subscription_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/idempotency"
	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/subscription"
)

var frozenNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newCatalog(t *testing.T) *plans.Catalog {
	t.Helper()
	c, err := plans.NewCatalog(context.Background(), plans.NewStaticSource(map[string]plans.Plan{
		"free": {
			ID:     "free",
			Name:   "Free",
			Period: plans.PeriodMonthly,
			Limits: map[plans.FeatureType]int64{plans.FeatureInvoices: 5},
		},
		"starter": {
			ID:                 "starter",
			Name:               "Starter",
			Period:             plans.PeriodMonthly,
			TrialDays:          7,
			Price:              plans.Money{Amount: 900, Currency: "USD"},
			Limits:             map[plans.FeatureType]int64{plans.FeatureInvoices: 100},
			CommissionEligible: true,
		},
		"pro": {
			ID:     "pro",
			Name:   "Pro",
			Period: plans.PeriodYearly,
			Limits: map[plans.FeatureType]int64{plans.FeatureInvoices: plans.Unlimited},
		},
	}))
	require.NoError(t, err)
	return c
}

// resetRecorder records ResetForNewPlan calls in place of a real usage ledger.
type resetRecorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *resetRecorder) ResetForNewPlan(_ context.Context, _ uuid.UUID, newPlanID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, newPlanID)
	return r.err
}

func (r *resetRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type referralRecorder struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (r *referralRecorder) RecordPayment(_ context.Context, referrerID, _ uuid.UUID, _ string, _ plans.Money) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, referrerID)
	return nil
}

func newLifecycle(t *testing.T, store subscription.Store, opts ...subscription.LifecycleOption) *subscription.Lifecycle {
	t.Helper()
	opts = append([]subscription.LifecycleOption{subscription.WithClock(fixedClock(frozenNow))}, opts...)
	return subscription.NewLifecycle(store, newCatalog(t), &resetRecorder{}, idempotency.NewMemoryDeduper(), opts...)
}

func TestLifecycle_StartTrial(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("trial plan starts trialing with end date", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		lc := newLifecycle(t, store)

		r, err := lc.StartTrial(ctx, uuid.New(), "starter", nil)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrial, r.Status)
		require.NotNil(t, r.PeriodEnd)
		assert.Equal(t, frozenNow.AddDate(0, 0, 7), *r.PeriodEnd)
		require.NotNil(t, r.TrialEndsAt)
		assert.Equal(t, *r.PeriodEnd, *r.TrialEndsAt)
	})

	t.Run("free plan starts active without end date", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		lc := newLifecycle(t, store)

		r, err := lc.StartTrial(ctx, uuid.New(), "free", nil)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, r.Status)
		assert.Nil(t, r.PeriodEnd)
		assert.Nil(t, r.TrialEndsAt)
	})

	t.Run("paid plan without trial is rejected", func(t *testing.T) {
		t.Parallel()
		lc := newLifecycle(t, subscription.NewMemoryStore())

		_, err := lc.StartTrial(ctx, uuid.New(), "pro", nil)
		require.ErrorIs(t, err, subscription.ErrTrialNotAvailable)
	})

	t.Run("second record for the same account is rejected", func(t *testing.T) {
		t.Parallel()
		lc := newLifecycle(t, subscription.NewMemoryStore())
		accountID := uuid.New()

		_, err := lc.StartTrial(ctx, accountID, "starter", nil)
		require.NoError(t, err)
		_, err = lc.StartTrial(ctx, accountID, "starter", nil)
		require.ErrorIs(t, err, subscription.ErrFailedToSave)
	})

	t.Run("snapshots initial usage counters", func(t *testing.T) {
		t.Parallel()
		resets := &resetRecorder{}
		lc := subscription.NewLifecycle(subscription.NewMemoryStore(), newCatalog(t), resets,
			idempotency.NewMemoryDeduper(), subscription.WithClock(fixedClock(frozenNow)))

		_, err := lc.StartTrial(ctx, uuid.New(), "starter", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"starter"}, resets.calls)
	})

	t.Run("referrer is persisted on the record", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		lc := newLifecycle(t, store)
		referrer := uuid.New()
		accountID := uuid.New()

		_, err := lc.StartTrial(ctx, accountID, "starter", &referrer)
		require.NoError(t, err)

		r, err := store.Get(ctx, accountID)
		require.NoError(t, err)
		require.NotNil(t, r.ReferredBy)
		assert.Equal(t, referrer, *r.ReferredBy)
	})
}

func TestLifecycle_ConfirmPayment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	event := func(accountID uuid.UUID, ref string) subscription.PaymentEvent {
		return subscription.PaymentEvent{
			AccountID:   accountID,
			PlanID:      "starter",
			Amount:      plans.Money{Amount: 900, Currency: "USD"},
			Reference:   ref,
			ConfirmedAt: frozenNow,
		}
	}

	t.Run("converts trial to active with fresh period", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		lc := newLifecycle(t, store)
		accountID := uuid.New()

		_, err := lc.StartTrial(ctx, accountID, "starter", nil)
		require.NoError(t, err)
		require.NoError(t, lc.ConfirmPayment(ctx, event(accountID, "pay_001")))

		r, err := store.Get(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, r.Status)
		assert.Equal(t, frozenNow, r.PeriodStart)
		require.NotNil(t, r.PeriodEnd)
		assert.Equal(t, frozenNow.AddDate(0, 1, 0), *r.PeriodEnd)
		assert.Nil(t, r.TrialEndsAt)
	})

	t.Run("duplicate reference applies exactly one transition", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		resets := &resetRecorder{}
		lc := subscription.NewLifecycle(store, newCatalog(t), resets,
			idempotency.NewMemoryDeduper(), subscription.WithClock(fixedClock(frozenNow)))
		accountID := uuid.New()

		_, err := lc.StartTrial(ctx, accountID, "starter", nil)
		require.NoError(t, err)
		resetsBefore := resets.count()

		require.NoError(t, lc.ConfirmPayment(ctx, event(accountID, "pay_dup")))
		require.NoError(t, lc.ConfirmPayment(ctx, event(accountID, "pay_dup")))
		require.NoError(t, lc.ConfirmPayment(ctx, event(accountID, "pay_dup")))

		assert.Equal(t, resetsBefore+1, resets.count(), "redelivered webhook must not reset counters again")
	})

	t.Run("renewal extends an active subscription", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		lc := newLifecycle(t, store)
		accountID := uuid.New()

		_, err := lc.StartTrial(ctx, accountID, "starter", nil)
		require.NoError(t, err)
		require.NoError(t, lc.ConfirmPayment(ctx, event(accountID, "pay_001")))

		renewal := event(accountID, "pay_002")
		renewal.ConfirmedAt = frozenNow.AddDate(0, 1, 0)
		require.NoError(t, lc.ConfirmPayment(ctx, renewal))

		r, err := store.Get(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, r.Status)
		assert.Equal(t, renewal.ConfirmedAt.AddDate(0, 1, 0), *r.PeriodEnd)
	})

	t.Run("expired account can re-subscribe", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		lc := newLifecycle(t, store)
		accountID := uuid.New()

		_, err := lc.StartTrial(ctx, accountID, "starter", nil)
		require.NoError(t, err)
		_, err = store.Update(ctx, accountID, func(r *subscription.Record) (bool, error) {
			r.Status = subscription.StatusExpired
			return true, nil
		})
		require.NoError(t, err)

		require.NoError(t, lc.ConfirmPayment(ctx, event(accountID, "pay_resub")))

		r, err := store.Get(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, r.Status)
	})

	t.Run("cancelled subscription rejects payment", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		lc := newLifecycle(t, store)
		accountID := uuid.New()

		_, err := lc.StartTrial(ctx, accountID, "starter", nil)
		require.NoError(t, err)
		require.NoError(t, lc.Cancel(ctx, accountID))

		err = lc.ConfirmPayment(ctx, event(accountID, "pay_after_cancel"))
		require.ErrorIs(t, err, subscription.ErrInvalidState)
	})

	t.Run("failed transition releases the reference for retry", func(t *testing.T) {
		t.Parallel()
		dedup := idempotency.NewMemoryDeduper()
		lc := subscription.NewLifecycle(subscription.NewMemoryStore(), newCatalog(t), &resetRecorder{},
			dedup, subscription.WithClock(fixedClock(frozenNow)))

		// No record exists, so the transition fails.
		err := lc.ConfirmPayment(ctx, event(uuid.New(), "pay_retry"))
		require.ErrorIs(t, err, subscription.ErrNotFound)

		first, err := dedup.MarkProcessed(ctx, "pay_retry")
		require.NoError(t, err)
		assert.True(t, first, "reference must be released after a failed confirmation")
	})

	t.Run("missing reference is rejected", func(t *testing.T) {
		t.Parallel()
		lc := newLifecycle(t, subscription.NewMemoryStore())

		e := event(uuid.New(), "")
		require.ErrorIs(t, lc.ConfirmPayment(ctx, e), subscription.ErrMissingPaymentRef)
	})

	t.Run("missing account id is rejected", func(t *testing.T) {
		t.Parallel()
		lc := newLifecycle(t, subscription.NewMemoryStore())

		require.ErrorIs(t, lc.ConfirmPayment(ctx, event(uuid.Nil, "pay_x")),
			subscription.ErrMissingAccountID)
	})

	t.Run("accrues referral commission for eligible plan", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		referrals := &referralRecorder{}
		lc := subscription.NewLifecycle(store, newCatalog(t), &resetRecorder{},
			idempotency.NewMemoryDeduper(),
			subscription.WithClock(fixedClock(frozenNow)),
			subscription.WithReferrals(referrals))

		referrer := uuid.New()
		accountID := uuid.New()
		_, err := lc.StartTrial(ctx, accountID, "starter", &referrer)
		require.NoError(t, err)

		require.NoError(t, lc.ConfirmPayment(ctx, event(accountID, "pay_ref")))
		require.Len(t, referrals.calls, 1)
		assert.Equal(t, referrer, referrals.calls[0])
	})

	t.Run("no referral accrual without referrer", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		referrals := &referralRecorder{}
		lc := subscription.NewLifecycle(store, newCatalog(t), &resetRecorder{},
			idempotency.NewMemoryDeduper(),
			subscription.WithClock(fixedClock(frozenNow)),
			subscription.WithReferrals(referrals))

		accountID := uuid.New()
		_, err := lc.StartTrial(ctx, accountID, "starter", nil)
		require.NoError(t, err)

		require.NoError(t, lc.ConfirmPayment(ctx, event(accountID, "pay_noref")))
		assert.Empty(t, referrals.calls)
	})
}

func TestLifecycle_Cancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("keeps access until period end", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		lc := newLifecycle(t, store)
		accountID := uuid.New()

		_, err := lc.StartTrial(ctx, accountID, "starter", nil)
		require.NoError(t, err)
		require.NoError(t, lc.Cancel(ctx, accountID))

		r, err := store.Get(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, r.Status)
		require.NotNil(t, r.CancelledAt)
		assert.True(t, r.HasAccessAt(frozenNow))
		assert.False(t, r.HasAccessAt(frozenNow.AddDate(0, 0, 8)))
	})

	t.Run("repeated cancel is a no-op", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		lc := newLifecycle(t, store)
		accountID := uuid.New()

		_, err := lc.StartTrial(ctx, accountID, "starter", nil)
		require.NoError(t, err)
		require.NoError(t, lc.Cancel(ctx, accountID))

		before, err := store.Get(ctx, accountID)
		require.NoError(t, err)

		require.NoError(t, lc.Cancel(ctx, accountID))
		after, err := store.Get(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, *before.CancelledAt, *after.CancelledAt)
	})

	t.Run("unknown account", func(t *testing.T) {
		t.Parallel()
		lc := newLifecycle(t, subscription.NewMemoryStore())
		require.ErrorIs(t, lc.Cancel(ctx, uuid.New()), subscription.ErrNotFound)
	})
}

func TestLifecycle_GetStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("trialing account", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		lc := newLifecycle(t, store)
		accountID := uuid.New()

		_, err := lc.StartTrial(ctx, accountID, "starter", nil)
		require.NoError(t, err)

		info, err := lc.GetStatus(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, "starter", info.PlanID)
		assert.Equal(t, "Starter", info.PlanName)
		assert.Equal(t, subscription.StatusTrial, info.Status)
		assert.True(t, info.Trial)
		assert.Equal(t, 7, info.TrialDaysRemaining)
		assert.Equal(t, 7, info.DaysRemaining)
		assert.True(t, info.HasAccess)
	})

	t.Run("free account never expires", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		lc := newLifecycle(t, store)
		accountID := uuid.New()

		_, err := lc.StartTrial(ctx, accountID, "free", nil)
		require.NoError(t, err)

		info, err := lc.GetStatus(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, -1, info.DaysRemaining)
		assert.True(t, info.HasAccess)
		assert.Nil(t, info.PeriodEnd)
	})

	t.Run("unknown account", func(t *testing.T) {
		t.Parallel()
		lc := newLifecycle(t, subscription.NewMemoryStore())
		_, err := lc.GetStatus(ctx, uuid.New())
		require.ErrorIs(t, err, subscription.ErrNotFound)
	})
}
