package ratelimit

import (
	"context"
	"testing"

	"golang.org/x/time/rate"
)

func TestMemoryDailyLimiterAllowsWithinCap(t *testing.T) {
	l := NewMemoryDailyLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "key1", "/v1/geolocate", 3)
		if err != nil {
			t.Fatalf("Allow returned error: %v", err)
		}
		if !ok {
			t.Fatalf("request %d should be within cap", i+1)
		}
	}

	ok, _ := l.Allow(ctx, "key1", "/v1/geolocate", 3)
	if ok {
		t.Error("4th request should exceed cap of 3")
	}
}

func TestMemoryDailyLimiterUnlimited(t *testing.T) {
	l := NewMemoryDailyLimiter()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, _ := l.Allow(ctx, "key1", "/v1/geolocate", 0)
		if !ok {
			t.Fatalf("request %d should be allowed when maxRequests=0", i+1)
		}
	}
}

func TestMemoryDailyLimiterSeparatesKeysAndPaths(t *testing.T) {
	l := NewMemoryDailyLimiter()
	ctx := context.Background()

	l.Allow(ctx, "key1", "/v1/geolocate", 1)
	ok, _ := l.Allow(ctx, "key2", "/v1/geolocate", 1)
	if !ok {
		t.Error("a different key should have its own counter")
	}

	ok, _ = l.Allow(ctx, "key1", "/v1/country", 1)
	if !ok {
		t.Error("a different path should have its own counter")
	}
}

func TestHostLimiterWait(t *testing.T) {
	h := NewHostLimiter(rate.Inf, 10)
	ctx := context.Background()

	if err := h.Wait(ctx, "fallback.example.com"); err != nil {
		t.Errorf("Wait returned error: %v", err)
	}
}
