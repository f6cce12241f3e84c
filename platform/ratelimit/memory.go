package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	start time.Time
	count int
}

// MemoryLimiter is a process-local fixed-window counter per key. It counts
// the same way as RedisLimiter: at most Policy.Limit requests from the first
// request of a window until Window has elapsed.
type MemoryLimiter struct {
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*memoryWindow
}

// NewMemoryLimiter creates a process-local limiter.
func NewMemoryLimiter(policy Policy) *MemoryLimiter {
	return &MemoryLimiter{
		policy:  policy,
		now:     time.Now,
		windows: make(map[string]*memoryWindow),
	}
}

// Allow counts one request for key in its current window.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := m.now()

	m.mu.Lock()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.start.Add(m.policy.Window)) {
		w = &memoryWindow{start: now}
		m.windows[key] = w
	}
	w.count++
	count := w.count
	resetAt := w.start.Add(m.policy.Window)
	m.mu.Unlock()

	res := Result{Limit: m.policy.Limit, ResetAt: resetAt}
	if count > m.policy.Limit {
		res.RetryAfter = resetAt.Sub(now)
		return res, nil
	}

	res.Allowed = true
	res.Remaining = m.policy.Limit - count
	return res, nil
}

// Prune drops keys whose window has ended.
func (m *MemoryLimiter) Prune() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, w := range m.windows {
		if !now.Before(w.start.Add(m.policy.Window)) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// Run prunes expired windows once per window until ctx is done.
func (m *MemoryLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(m.policy.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Prune()
		}
	}
}
