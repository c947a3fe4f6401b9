package rediscache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ichnaea-go/locate/pkg/locate/fallbackwire"
	"github.com/ichnaea-go/locate/pkg/monitoring"
)

// backingCache is the Redis-backed tier TieredFallbackCache falls
// through to on a local miss.
type backingCache interface {
	Get(ctx context.Context, fingerprint string) (fallbackwire.Response, bool)
	Set(ctx context.Context, fingerprint string, resp fallbackwire.Response)
}

// TieredFallbackCache sits an in-process LRU in front of a Redis-backed
// FallbackCache, so repeated beacon sets within one process never pay a
// Redis round trip between the external fallback calls that populate
// it (spec.md §4.4's fallback cache, extended with a local tier the
// distillation leaves unspecified).
type TieredFallbackCache struct {
	local    *lru.Cache[string, fallbackwire.Response]
	backing  backingCache
}

// NewTieredFallbackCache builds a TieredFallbackCache holding up to
// size entries locally before falling through to backing.
func NewTieredFallbackCache(size int, backing backingCache) (*TieredFallbackCache, error) {
	local, err := lru.New[string, fallbackwire.Response](size)
	if err != nil {
		return nil, err
	}
	return &TieredFallbackCache{local: local, backing: backing}, nil
}

// Get consults the local LRU first, falling through to the backing
// cache (and populating the LRU) on a local miss.
func (c *TieredFallbackCache) Get(ctx context.Context, fingerprint string) (fallbackwire.Response, bool) {
	if resp, ok := c.local.Get(fingerprint); ok {
		monitoring.RecordCacheHit("fallback_local")
		return resp, true
	}
	monitoring.RecordCacheMiss("fallback_local")

	resp, ok := c.backing.Get(ctx, fingerprint)
	if ok {
		c.local.Add(fingerprint, resp)
	}
	return resp, ok
}

// Set populates both the local LRU and the backing cache.
func (c *TieredFallbackCache) Set(ctx context.Context, fingerprint string, resp fallbackwire.Response) {
	c.local.Add(fingerprint, resp)
	c.backing.Set(ctx, fingerprint, resp)
}
