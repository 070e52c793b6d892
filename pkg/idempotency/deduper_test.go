package idempotency_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/idempotency"
)

func TestMemoryDeduper(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("first claim wins", func(t *testing.T) {
		t.Parallel()
		d := idempotency.NewMemoryDeduper()

		first, err := d.MarkProcessed(ctx, "pay_001")
		require.NoError(t, err)
		assert.True(t, first)

		again, err := d.MarkProcessed(ctx, "pay_001")
		require.NoError(t, err)
		assert.False(t, again)
	})

	t.Run("release allows a re-claim", func(t *testing.T) {
		t.Parallel()
		d := idempotency.NewMemoryDeduper()

		_, err := d.MarkProcessed(ctx, "pay_002")
		require.NoError(t, err)
		require.NoError(t, d.Release(ctx, "pay_002"))

		first, err := d.MarkProcessed(ctx, "pay_002")
		require.NoError(t, err)
		assert.True(t, first)
	})

	t.Run("exactly one concurrent claimer wins", func(t *testing.T) {
		t.Parallel()
		d := idempotency.NewMemoryDeduper()

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				first, err := d.MarkProcessed(ctx, "pay_race")
				if err == nil && first {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestRedisDeduper(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newDeduper := func(t *testing.T, opts ...idempotency.RedisDeduperOption) (*idempotency.RedisDeduper, *miniredis.Miniredis) {
		t.Helper()
		srv := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return idempotency.NewRedisDeduper(client, opts...), srv
	}

	t.Run("first claim wins", func(t *testing.T) {
		t.Parallel()
		d, _ := newDeduper(t)

		first, err := d.MarkProcessed(ctx, "pay_001")
		require.NoError(t, err)
		assert.True(t, first)

		again, err := d.MarkProcessed(ctx, "pay_001")
		require.NoError(t, err)
		assert.False(t, again)
	})

	t.Run("release allows a re-claim", func(t *testing.T) {
		t.Parallel()
		d, _ := newDeduper(t)

		_, err := d.MarkProcessed(ctx, "pay_002")
		require.NoError(t, err)
		require.NoError(t, d.Release(ctx, "pay_002"))

		first, err := d.MarkProcessed(ctx, "pay_002")
		require.NoError(t, err)
		assert.True(t, first)
	})

	t.Run("claims expire after the ttl", func(t *testing.T) {
		t.Parallel()
		d, srv := newDeduper(t, idempotency.WithTTL(time.Minute))

		_, err := d.MarkProcessed(ctx, "pay_003")
		require.NoError(t, err)

		srv.FastForward(2 * time.Minute)

		first, err := d.MarkProcessed(ctx, "pay_003")
		require.NoError(t, err)
		assert.True(t, first, "expired claim must be claimable again")
	})

	t.Run("key prefix isolates namespaces", func(t *testing.T) {
		t.Parallel()
		d, srv := newDeduper(t, idempotency.WithKeyPrefix("billing:dedup:"))

		_, err := d.MarkProcessed(ctx, "pay_004")
		require.NoError(t, err)
		assert.True(t, srv.Exists("billing:dedup:pay_004"))
	})
}
