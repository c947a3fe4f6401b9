// Package ratelimit provides the two rate-limiting concerns the
// pipeline needs: a daily per-API-key request cap (backed by Redis
// INCR+EXPIRE, see pkg/rediscache) and an in-process token-bucket
// throttle for outbound calls to the external fallback service.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DailyLimiter enforces apilimit:{key}:{path}:{date} daily caps. The
// concrete counter storage (Redis in production) lives behind this
// interface so the pipeline can be tested without a live backend.
type DailyLimiter interface {
	// Allow increments today's counter for (key, path) and reports
	// whether the request is still within maxRequests. maxRequests <= 0
	// means unlimited.
	Allow(ctx context.Context, key, path string, maxRequests int) (bool, error)
}

// HostLimiter throttles outbound requests per destination host, the
// same token-bucket pattern used for per-host throttling of outbound
// HTTP calls.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// NewHostLimiter builds a HostLimiter allowing r requests per second,
// per host, with the given burst.
func NewHostLimiter(r rate.Limit, burst int) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

func (h *HostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.r, h.burst)
		h.limiters[host] = l
	}
	return l
}

// Wait blocks until a request to host is permitted or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	return h.limiterFor(host).Wait(ctx)
}

// memoryDailyLimiter is an in-process DailyLimiter for local/dev use
// and tests; it resets naturally at process restart rather than
// expiring keys explicitly like the Redis-backed implementation.
type memoryDailyLimiter struct {
	mu     sync.Mutex
	counts map[string]dailyCount
}

type dailyCount struct {
	day   string
	count int
}

// NewMemoryDailyLimiter returns a DailyLimiter with no external
// dependency, suitable for tests and single-process deployments.
func NewMemoryDailyLimiter() DailyLimiter {
	return &memoryDailyLimiter{counts: make(map[string]dailyCount)}
}

func (m *memoryDailyLimiter) Allow(ctx context.Context, key, path string, maxRequests int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := time.Now().UTC().Format("20060102")
	bucket := fmt.Sprintf("%s:%s", key, path)

	c := m.counts[bucket]
	if c.day != today {
		c = dailyCount{day: today, count: 0}
	}
	c.count++
	m.counts[bucket] = c

	if maxRequests <= 0 {
		return true, nil
	}
	return c.count <= maxRequests, nil
}
