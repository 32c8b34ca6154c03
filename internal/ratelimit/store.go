package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one hit against a fixed window.
type Decision struct {
	Allowed bool
	Count   int
	ResetAt time.Time
}

// RetryAfter is the time left until the window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if left := d.ResetAt.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Store counts hits per key in fixed windows. The first hit opens a window of
// the given length; once it expires the next hit starts a fresh one.
type Store interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

type counter struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a process-local Store. Expired windows are dropped by Sweep,
// which Run calls periodically.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*counter), now: time.Now}
}

func (s *MemoryStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &counter{resetAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return Decision{Allowed: c.count <= limit, Count: c.count, ResetAt: c.resetAt}, nil
}

// Sweep removes windows that have expired and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for key, c := range s.counters {
		if !now.Before(c.resetAt) {
			delete(s.counters, key)
			n++
		}
	}
	return n
}

// Len reports the number of live windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Run sweeps every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
