package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Result is the outcome of evaluating one tier for one request.
type Result struct {
	Tier      Tier
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Limiter evaluates tiers in order against lazily-created counter stores, one
// store per distinct signature. Memory stays bounded by configuration
// diversity, not caller cardinality; callers are addressed inside a store by
// identity.
type Limiter struct {
	mu       sync.Mutex
	stores   map[Signature]Store
	newStore func(Signature) Store
}

// NewMemoryLimiter creates a limiter backed by process-local counters. Quota
// is per instance; multiple gateway instances do not share windows.
func NewMemoryLimiter() *Limiter {
	log.Info().Msg("rate-limit counters are process-local; quota is enforced per gateway instance")
	return &Limiter{
		stores:   make(map[Signature]Store),
		newStore: func(Signature) Store { return NewMemoryStore(0) },
	}
}

// NewRedisLimiter creates a limiter whose counters live in Redis, shared by
// every instance pointed at the same server.
func NewRedisLimiter(client *redis.Client) *Limiter {
	return &Limiter{
		stores:   make(map[Signature]Store),
		newStore: func(sig Signature) Store { return NewRedisStore(client, sig) },
	}
}

// Allow evaluates every usable tier in order, charging each tier's counter,
// and stops at the first tier that rejects. The returned slice holds one
// Result per evaluated tier; when the last entry is not Allowed the request
// must be refused.
func (l *Limiter) Allow(ctx context.Context, tiers []Tier) ([]Result, error) {
	results := make([]Result, 0, len(tiers))

	for _, tier := range tiers {
		if !tier.Spec.Usable() {
			continue
		}

		sig := Signature{Requests: tier.Spec.Requests, PeriodMs: tier.Spec.PeriodMs}
		count, resetAt, err := l.store(sig).Hit(ctx, tier.Identity, tier.Spec.Period())
		if err != nil {
			return results, fmt.Errorf("%s tier check: %w", tier.Name, err)
		}

		res := Result{
			Tier:      tier,
			Allowed:   count <= int64(tier.Spec.Requests),
			Remaining: max(0, int64(tier.Spec.Requests)-count),
			ResetAt:   resetAt,
		}
		results = append(results, res)

		if !res.Allowed {
			return results, nil
		}
	}

	return results, nil
}

// Close releases every counter store.
func (l *Limiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for sig, store := range l.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.stores, sig)
	}
	return firstErr
}

func (l *Limiter) store(sig Signature) Store {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s, ok := l.stores[sig]; ok {
		return s
	}
	s := l.newStore(sig)
	l.stores[sig] = s
	return s
}
