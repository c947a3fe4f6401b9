package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ichnaea-go/locate/pkg/locate/fallbackwire"
)

func fallbackTestResponse() fallbackwire.Response {
	return fallbackwire.Response{CountryCode: "GB", CountryName: "United Kingdom"}
}

// unreachableClient points at a port nothing listens on, so every
// operation fails fast with a connection error -- exercising the
// "Redis is down" paths spec.md §5 requires never block the pipeline.
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	})
}

func TestFallbackCacheGetMissOnUnreachableRedis(t *testing.T) {
	cache := NewFallbackCache(unreachableClient())

	resp, ok := cache.Get(context.Background(), "fingerprint")
	if ok {
		t.Fatalf("Get on unreachable redis = ok, want miss")
	}
	if !resp.Empty() {
		t.Fatalf("Get on unreachable redis returned non-empty response")
	}
}

func TestFallbackCacheSetDoesNotPanicOnUnreachableRedis(t *testing.T) {
	cache := NewFallbackCache(unreachableClient())
	cache.Set(context.Background(), "fingerprint", fallbackTestResponse())
}

func TestDailyCounterErrorsOnUnreachableRedis(t *testing.T) {
	counter := NewDailyCounter(unreachableClient())

	_, err := counter.Allow(context.Background(), "key1", "/v1/geolocate", 1000)
	if err == nil {
		t.Fatalf("Allow on unreachable redis = nil error, want a backend-unavailable error")
	}
}

func TestUniqueIPTrackerDoesNotPanicOnUnreachableRedis(t *testing.T) {
	tracker := NewUniqueIPTracker(unreachableClient())
	tracker.Record(context.Background(), "locate", "test-key", "127.0.0.1")
}

func TestCacheKeyFormat(t *testing.T) {
	got := cacheKey("abc123")
	want := "fallback:abc123"
	if got != want {
		t.Errorf("cacheKey = %q, want %q", got, want)
	}
}
