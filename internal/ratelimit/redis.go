package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore counts windows in Redis so quota is shared across gateway
// instances. One store handles one signature; the signature is baked into the
// key prefix so counters for different configurations never collide.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed counter store for one signature. The
// client is shared and stays owned by the caller.
func NewRedisStore(client *redis.Client, sig Signature) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: fmt.Sprintf("ratelimit:%d:%d:", sig.Requests, sig.PeriodMs),
	}
}

// Hit implements Store. The window TTL is armed only when INCR opens the
// window, so the reset stays anchored to the first hit.
func (s *RedisStore) Hit(ctx context.Context, identity string, period time.Duration) (int64, time.Time, error) {
	key := s.prefix + identity

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("redis counter increment: %w", err)
	}

	count := incr.Val()
	remaining := ttl.Val()
	if count == 1 || remaining < 0 {
		if err := s.client.PExpire(ctx, key, period).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("redis counter expire: %w", err)
		}
		remaining = period
	}

	return count, time.Now().Add(remaining), nil
}

// Close implements Store. The shared client outlives the store.
func (s *RedisStore) Close() error {
	return nil
}
