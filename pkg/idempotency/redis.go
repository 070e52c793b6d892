package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper claims references with SET NX, which is atomic across every
// instance sharing the Redis server. A TTL bounds memory growth; it should be
// comfortably longer than the payment gateway's webhook retry horizon.
type RedisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisDeduperOption configures a RedisDeduper.
type RedisDeduperOption func(*RedisDeduper)

// WithKeyPrefix overrides the default "dedup:" key prefix.
func WithKeyPrefix(prefix string) RedisDeduperOption {
	return func(d *RedisDeduper) {
		if prefix != "" {
			d.prefix = prefix
		}
	}
}

// WithTTL overrides how long claimed references are remembered.
func WithTTL(ttl time.Duration) RedisDeduperOption {
	return func(d *RedisDeduper) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// NewRedisDeduper creates a Redis-backed deduper.
func NewRedisDeduper(client *redis.Client, opts ...RedisDeduperOption) *RedisDeduper {
	if client == nil {
		panic("idempotency: redis client is required")
	}
	d := &RedisDeduper{
		client: client,
		prefix: "dedup:",
		ttl:    30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *RedisDeduper) MarkProcessed(ctx context.Context, reference string) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+reference, 1, d.ttl).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, reference string) error {
	return d.client.Del(ctx, d.prefix+reference).Err()
}
