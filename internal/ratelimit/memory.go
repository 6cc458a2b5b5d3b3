package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// MemoryLimiter keeps token buckets in process memory. Buckets are created
// lazily on first use and swept after going untouched for a staleness window
// so key/address churn cannot grow memory without bound.
type MemoryLimiter struct {
	mu      sync.Mutex
	limits  map[Scope]Limit
	buckets map[string]*bucket
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
}

// NewMemoryLimiter builds a limiter for the given scope limits. Scopes with
// no configured limit pass unconditionally.
func NewMemoryLimiter(limits map[Scope]Limit) *MemoryLimiter {
	return &MemoryLimiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// Allow refills the bucket for (scope, key) proportionally to elapsed time,
// then deducts cost or denies with a wait hint. The refill-then-deduct
// sequence holds the lock throughout; it is not safely decomposable.
func (m *MemoryLimiter) Allow(_ context.Context, scope Scope, key string, cost float64) (Decision, error) {
	limit, ok := m.limits[scope]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	id := string(scope) + ":" + key
	b, exists := m.buckets[id]
	if !exists {
		b = &bucket{tokens: limit.Burst, lastRefill: now}
		m.buckets[id] = b
	} else {
		elapsed := now.Sub(b.lastRefill)
		if elapsed < 0 {
			elapsed = 0
		}
		b.tokens += elapsed.Seconds() * limit.Rate
		if b.tokens > limit.Burst {
			b.tokens = limit.Burst
		}
		b.lastRefill = now
	}

	if b.tokens >= cost {
		b.tokens -= cost
		return Decision{Allowed: true}, nil
	}

	missing := cost - b.tokens
	wait := time.Duration(missing / limit.Rate * float64(time.Second))
	return Decision{Allowed: false, RetryAfter: wait}, nil
}

// StartSweeper launches a background loop that drops buckets untouched for
// longer than staleAge, checking every interval. Stop terminates it.
func (m *MemoryLimiter) StartSweeper(interval, staleAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep(staleAge)
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *MemoryLimiter) sweep(staleAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-staleAge)
	for id, b := range m.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(m.buckets, id)
		}
	}
}

// Stop terminates the sweeper. Safe to call more than once.
func (m *MemoryLimiter) Stop() {
	m.stopped.Do(func() { close(m.stop) })
}

// bucketCount is exposed for tests.
func (m *MemoryLimiter) bucketCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
