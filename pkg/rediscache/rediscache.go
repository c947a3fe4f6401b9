// Package rediscache implements the three pieces of spec.md §6's
// "Persisted state" that are backed by Redis: the fallback-result
// cache (SETEX), the per-API-key daily rate-limit counter
// (INCR+EXPIRE, pipelined), and the per-day unique-client-IP tracker
// (HyperLogLog). The fallback cache and the unique-IP tracker swallow
// Redis failures, so an outage only degrades caching and counting;
// the daily counter reports a Redis failure to its caller as an error.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ichnaea-go/locate/pkg/locate/fallbackwire"
	"github.com/ichnaea-go/locate/pkg/monitoring"
)

// FallbackTTL is how long a cached fallback response is trusted
// before a fresh lookup is required.
const FallbackTTL = 7 * 24 * time.Hour

// DailyCounterTTL matches the apilimit key's documented 1-day TTL.
const DailyCounterTTL = 25 * time.Hour // a little over a day to absorb clock skew at the boundary

// UniqueIPTTL matches the apiuser key's documented 8-day TTL.
const UniqueIPTTL = 8 * 24 * time.Hour

// FallbackCache caches FallbackSource responses by a stable
// fingerprint of the query's beacon set, so repeated observations of
// the same beacons don't each trigger an external HTTP call.
type FallbackCache struct {
	client *redis.Client
}

// NewFallbackCache wraps an existing Redis client.
func NewFallbackCache(client *redis.Client) *FallbackCache {
	return &FallbackCache{client: client}
}

// Get looks up a cached fallback response. A miss (key absent,
// expired, undecodable, or Redis itself unreachable) reports ok=false;
// no error is returned, so "no answer" and "Redis is down" look the
// same to callers, which fall through to a live fallback call.
func (c *FallbackCache) Get(ctx context.Context, fingerprint string) (fallbackwire.Response, bool) {
	data, err := c.client.Get(ctx, cacheKey(fingerprint)).Bytes()
	if err != nil {
		if err != redis.Nil {
			monitoring.RecordError("rediscache", "get")
		}
		monitoring.RecordCacheMiss("fallback")
		return fallbackwire.Response{}, false
	}

	var resp fallbackwire.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		monitoring.RecordError("rediscache", "decode")
		return fallbackwire.Response{}, false
	}
	monitoring.RecordCacheHit("fallback")
	return resp, true
}

// Set caches a fallback response for FallbackTTL. Per spec.md §4.4,
// callers only call Set on success or on a "definitely empty" miss,
// never on a transport/5xx error -- that policy lives in the caller
// (FallbackSource), not here.
func (c *FallbackCache) Set(ctx context.Context, fingerprint string, resp fallbackwire.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.client.SetEX(ctx, cacheKey(fingerprint), data, FallbackTTL).Err(); err != nil {
		monitoring.RecordError("rediscache", "set")
	}
}

func cacheKey(fingerprint string) string {
	return fmt.Sprintf("fallback:%s", fingerprint)
}

// DailyCounter implements ratelimit.DailyLimiter against Redis,
// backing the apilimit:{key}:{path}:{YYYYMMDD} counters spec.md §6
// documents, via a pipelined INCR+EXPIRE so the increment and its TTL
// are applied atomically from the client's perspective.
type DailyCounter struct {
	client *redis.Client
}

// NewDailyCounter wraps an existing Redis client.
func NewDailyCounter(client *redis.Client) *DailyCounter {
	return &DailyCounter{client: client}
}

// Allow increments today's counter for (key, path) and reports
// whether the request is still within maxRequests. A Redis failure on
// the mandatory rate-limit path is reported as an error: spec.md §7
// classifies "cannot reach Redis for rate limiting" as the one
// infrastructure failure that surfaces as a 503, distinct from the
// best-effort fallback cache above.
func (d *DailyCounter) Allow(ctx context.Context, key, path string, maxRequests int) (bool, error) {
	today := time.Now().UTC().Format("20060102")
	counterKey := fmt.Sprintf("apilimit:%s:%s:%s", key, path, today)

	pipe := d.client.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.Expire(ctx, counterKey, DailyCounterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		monitoring.RecordError("rediscache", "rate_limit")
		return false, fmt.Errorf("incrementing rate limit counter: %w", err)
	}

	if maxRequests <= 0 {
		return true, nil
	}
	return incr.Val() <= int64(maxRequests), nil
}

// UniqueIPTracker records a HyperLogLog of per-day unique client IPs
// per (api_type, api_name), backing the apiuser:{api_type}:{api_name}:
// {YYYY-MM-DD} keys spec.md §6 documents. It is purely observational:
// failures are swallowed, matching the best-effort metrics policy in
// spec.md §5.
type UniqueIPTracker struct {
	client *redis.Client
}

// NewUniqueIPTracker wraps an existing Redis client.
func NewUniqueIPTracker(client *redis.Client) *UniqueIPTracker {
	return &UniqueIPTracker{client: client}
}

// Record adds ip to today's unique-IP HyperLogJog for (apiType, apiName).
func (u *UniqueIPTracker) Record(ctx context.Context, apiType, apiName, ip string) {
	today := time.Now().UTC().Format("2006-01-02")
	key := fmt.Sprintf("apiuser:%s:%s:%s", apiType, apiName, today)

	pipe := u.client.TxPipeline()
	pipe.PFAdd(ctx, key, ip)
	pipe.Expire(ctx, key, UniqueIPTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		monitoring.RecordError("rediscache", "unique_ip")
	}
}

// Count returns the estimated unique-IP count for (apiType, apiName)
// on the given date (YYYY-MM-DD). Used by operational reporting, not
// by the locate pipeline itself.
func (u *UniqueIPTracker) Count(ctx context.Context, apiType, apiName, date string) (int64, error) {
	key := fmt.Sprintf("apiuser:%s:%s:%s", apiType, apiName, date)
	return u.client.PFCount(ctx, key).Result()
}
