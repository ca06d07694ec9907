package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore counts windows in process memory. It is the default backend:
// fastest, but quota is per gateway instance only.
type MemoryStore struct {
	mu         sync.Mutex
	windows    map[string]*window
	now        func() time.Time
	gcInterval time.Duration
	stopCh     chan struct{}
	stopped    int32 // atomic; guards against double Close
}

type window struct {
	count   int64
	resetAt time.Time
}

// NewMemoryStore creates an in-memory counter store. gcInterval controls how
// often stale windows are swept.
func NewMemoryStore(gcInterval time.Duration) *MemoryStore {
	if gcInterval <= 0 {
		gcInterval = 10 * time.Minute
	}

	s := &MemoryStore{
		windows:    make(map[string]*window),
		now:        time.Now,
		gcInterval: gcInterval,
		stopCh:     make(chan struct{}),
	}
	go s.gc()
	return s
}

// Hit implements Store.
func (s *MemoryStore) Hit(_ context.Context, identity string, period time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w := s.windows[identity]
	if w == nil || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(period)}
		s.windows[identity] = w
	}

	w.count++
	return w.count, w.resetAt, nil
}

// Close stops the sweep goroutine.
func (s *MemoryStore) Close() error {
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		return nil
	}
	close(s.stopCh)
	return nil
}

func (s *MemoryStore) gc() {
	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for identity, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, identity)
		}
	}
}
