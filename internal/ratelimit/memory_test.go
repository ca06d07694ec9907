package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreHit(t *testing.T) {
	ctx := context.Background()

	t.Run("counts hits within a window", func(t *testing.T) {
		store := NewMemoryStore(time.Minute)
		defer func() { _ = store.Close() }()

		for i := int64(1); i <= 5; i++ {
			count, _, err := store.Hit(ctx, "caller-a", time.Hour)
			require.NoError(t, err)
			assert.Equal(t, i, count)
		}
	})

	t.Run("identities count independently", func(t *testing.T) {
		store := NewMemoryStore(time.Minute)
		defer func() { _ = store.Close() }()

		_, _, err := store.Hit(ctx, "caller-a", time.Hour)
		require.NoError(t, err)
		_, _, err = store.Hit(ctx, "caller-a", time.Hour)
		require.NoError(t, err)

		count, _, err := store.Hit(ctx, "caller-b", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("window resets after the period", func(t *testing.T) {
		store := NewMemoryStore(time.Minute)
		defer func() { _ = store.Close() }()

		now := time.Now()
		store.now = func() time.Time { return now }

		for i := 0; i < 3; i++ {
			_, _, err := store.Hit(ctx, "caller-a", time.Hour)
			require.NoError(t, err)
		}

		// Advance the clock past the window.
		store.now = func() time.Time { return now.Add(time.Hour + time.Second) }

		count, resetAt, err := store.Hit(ctx, "caller-a", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "first hit of the new window")
		assert.Equal(t, now.Add(2*time.Hour+time.Second), resetAt)
	})

	t.Run("window is anchored to its first hit", func(t *testing.T) {
		store := NewMemoryStore(time.Minute)
		defer func() { _ = store.Close() }()

		now := time.Now()
		store.now = func() time.Time { return now }

		_, resetAt, err := store.Hit(ctx, "caller-a", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), resetAt)

		// A later hit in the same window keeps the original reset instant.
		store.now = func() time.Time { return now.Add(30 * time.Minute) }
		_, resetAt, err = store.Hit(ctx, "caller-a", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), resetAt)
	})

	t.Run("sweep drops expired windows", func(t *testing.T) {
		store := NewMemoryStore(time.Minute)
		defer func() { _ = store.Close() }()

		now := time.Now()
		store.now = func() time.Time { return now }

		_, _, err := store.Hit(ctx, "caller-a", time.Hour)
		require.NoError(t, err)
		_, _, err = store.Hit(ctx, "caller-b", 2*time.Hour)
		require.NoError(t, err)

		store.now = func() time.Time { return now.Add(90 * time.Minute) }
		store.sweep()

		store.mu.Lock()
		defer store.mu.Unlock()
		assert.NotContains(t, store.windows, "caller-a")
		assert.Contains(t, store.windows, "caller-b")
	})

	t.Run("close is safe to call twice", func(t *testing.T) {
		store := NewMemoryStore(time.Minute)
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())
	})
}
