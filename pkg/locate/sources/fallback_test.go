package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ichnaea-go/locate/pkg/apikey"
	"github.com/ichnaea-go/locate/pkg/locate/fallbackwire"
	"github.com/ichnaea-go/locate/pkg/locate/query"
	"github.com/ichnaea-go/locate/pkg/locate/result"
)

type memCache struct {
	data map[string]fallbackwire.Response
}

func newMemCache() *memCache { return &memCache{data: make(map[string]fallbackwire.Response)} }

func (c *memCache) Get(_ context.Context, fp string) (fallbackwire.Response, bool) {
	r, ok := c.data[fp]
	return r, ok
}

func (c *memCache) Set(_ context.Context, fp string, r fallbackwire.Response) {
	c.data[fp] = r
}

func allowedKey() apikey.APIKey {
	return apikey.APIKey{Name: "test", ValidKey: "k", AllowFallback: true}
}

func TestFallbackSourceShouldSearchRequiresAllowFallback(t *testing.T) {
	q := query.New(query.APITypeLocate, query.WithAPIKey(apikey.APIKey{AllowFallback: false}))
	src := NewFallbackSource("http://example.invalid", http.DefaultClient, nil)
	if src.ShouldSearch(q, &result.ResultList{}) {
		t.Fatalf("ShouldSearch = true without allow_fallback, want false")
	}
}

func TestFallbackSourceShouldSearchRequiresFallbackFlags(t *testing.T) {
	q := query.New(query.APITypeLocate,
		query.WithAPIKey(allowedKey()),
		query.WithFallback(map[string]bool{"lacf": false, "ipf": false}),
	)
	src := NewFallbackSource("http://example.invalid", http.DefaultClient, nil)
	if src.ShouldSearch(q, &result.ResultList{}) {
		t.Fatalf("ShouldSearch = true with both fallback flags off, want false")
	}
}

func TestFallbackSourceSearchHitsServiceAndCaches(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(fallbackwire.Response{
			Location: &fallbackwire.Location{Lat: 51.5, Lng: -0.1},
			Accuracy: floatPtr(1000),
		})
	}))
	defer server.Close()

	cache := newMemCache()
	src := NewFallbackSource(server.URL, server.Client(), cache)

	q := query.New(query.APITypeLocate,
		query.WithAPIKey(allowedKey()),
		query.WithCells([]query.RawCell{{Radio: "lte", MCC: 234, MNC: 10, LAC: 1, CID: 1}}),
	)

	r := src.Search(context.Background(), q)
	if !r.HasLatLon || r.Lat != 51.5 {
		t.Fatalf("Search = %+v, want lat 51.5", r)
	}
	if calls != 1 {
		t.Fatalf("server called %d times, want 1", calls)
	}

	// Second call for the same beacon set should hit the cache, not
	// the server again.
	r2 := src.Search(context.Background(), q)
	if r2.Lat != 51.5 {
		t.Fatalf("cached Search = %+v, want lat 51.5", r2)
	}
	if calls != 1 {
		t.Fatalf("server called %d times after cache hit, want still 1", calls)
	}
}

func TestFallbackSourceSearchEmptyResponseIsCacheable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cache := newMemCache()
	src := NewFallbackSource(server.URL, server.Client(), cache)

	q := query.New(query.APITypeLocate,
		query.WithAPIKey(allowedKey()),
		query.WithCells([]query.RawCell{{Radio: "lte", MCC: 234, MNC: 10, LAC: 1, CID: 1}}),
	)

	r := src.Search(context.Background(), q)
	if !r.Empty() {
		t.Fatalf("Search on 404 = %+v, want empty", r)
	}
	if len(cache.data) != 1 {
		t.Fatalf("cache entries = %d, want 1 (definitely-empty response is cacheable)", len(cache.data))
	}
}

func TestFallbackSourceSearchServerErrorIsNotCached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cache := newMemCache()
	src := NewFallbackSource(server.URL, server.Client(), cache, WithMaxRetries(0))

	q := query.New(query.APITypeLocate,
		query.WithAPIKey(allowedKey()),
		query.WithCells([]query.RawCell{{Radio: "lte", MCC: 234, MNC: 10, LAC: 1, CID: 1}}),
	)

	r := src.Search(context.Background(), q)
	if !r.Empty() {
		t.Fatalf("Search on 500 = %+v, want empty", r)
	}
	if len(cache.data) != 0 {
		t.Fatalf("cache entries = %d, want 0 (errors are never cached)", len(cache.data))
	}
}

func floatPtr(v float64) *float64 { return &v }
