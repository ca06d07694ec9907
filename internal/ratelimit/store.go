// Package ratelimit enforces the gateway's tiered admission quotas with
// fixed-window counters.
package ratelimit

import (
	"context"
	"time"
)

// Signature identifies one counting configuration. Counters under different
// signatures never share state, even for the same identity.
type Signature struct {
	Requests int
	PeriodMs int64
}

// Store counts hits per identity under one signature's fixed windows. A
// window opens on its first hit and resets after the window duration; the
// check and the increment are atomic per identity.
type Store interface {
	// Hit charges one request against identity's current window, opening a
	// fresh window if none is active. It returns the post-increment count and
	// the instant the window resets.
	Hit(ctx context.Context, identity string, window time.Duration) (int64, time.Time, error)

	Close() error
}
