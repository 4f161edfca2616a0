package middleware

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps a sliding window log of request times per key. State is
// per process.
type MemoryLimiter struct {
	config RateLimiterConfig
	now    func() time.Time

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

func NewMemoryLimiter(config RateLimiterConfig) *MemoryLimiter {
	return &MemoryLimiter{
		config:    config,
		now:       time.Now,
		hits:      make(map[string][]time.Time),
		lastSweep: time.Now(),
	}
}

func (m *MemoryLimiter) Allow(ctx context.Context, key string) (RateDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.config.Window)

	if now.Sub(m.lastSweep) >= m.config.Window {
		m.sweep(cutoff)
		m.lastSweep = now
	}

	hits := prune(m.hits[key], cutoff)

	if len(hits) >= m.config.MaxRequests {
		m.hits[key] = hits
		var resetAfter time.Duration
		if len(hits) > 0 {
			resetAfter = hits[0].Add(m.config.Window).Sub(now)
		}
		return RateDecision{
			Allowed:    false,
			Limit:      m.config.MaxRequests,
			Remaining:  0,
			ResetAfter: resetAfter,
		}, nil
	}

	hits = append(hits, now)
	m.hits[key] = hits

	return RateDecision{
		Allowed:    true,
		Limit:      m.config.MaxRequests,
		Remaining:  m.config.MaxRequests - len(hits),
		ResetAfter: hits[0].Add(m.config.Window).Sub(now),
	}, nil
}

// sweep drops keys with no hit inside the window.
func (m *MemoryLimiter) sweep(cutoff time.Time) {
	for key, hits := range m.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(m.hits, key)
		}
	}
}

// prune drops hits at or before cutoff. hits is in ascending order.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
