package sources

import (
	"context"
	"testing"
	"time"

	"github.com/ichnaea-go/locate/pkg/apikey"
	"github.com/ichnaea-go/locate/pkg/geoipdb"
	"github.com/ichnaea-go/locate/pkg/locate/query"
	"github.com/ichnaea-go/locate/pkg/locate/result"
	"github.com/ichnaea-go/locate/pkg/locate/station"
)

// stubSource is a Source whose behavior is fixed at construction,
// used to exercise Run's ordering and early-termination contract
// without depending on any concrete source's internals.
type stubSource struct {
	name         string
	shouldSearch bool
	result       result.Result
	searched     bool
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) ShouldSearch(*query.Query, *result.ResultList) bool {
	return s.shouldSearch
}

func (s *stubSource) Search(context.Context, *query.Query) result.Result {
	s.searched = true
	return s.result
}

func TestRunStopsEarlyOnceExpectedAccuracySatisfied(t *testing.T) {
	store := newFakeStore()
	store.wifis["aabbccddeeff"] = station.Fix{Lat: 51.5, Lon: -0.1, Radius: 30, LastSeen: time.Now()}
	store.wifis["112233445566"] = station.Fix{Lat: 51.501, Lon: -0.099, Radius: 40, LastSeen: time.Now()}

	q := query.New(query.APITypeLocate, query.WithWifis([]query.RawWifi{
		{MAC: "aa:bb:cc:dd:ee:ff", SignalStrength: intPtr(-50)},
		{MAC: "11:22:33:44:55:66", SignalStrength: intPtr(-60)},
	}))
	// wifi-backed locate queries expect DataAccuracyHigh, which the
	// internal source's fused wifi result satisfies.
	if q.ExpectedAccuracy() != result.DataAccuracyHigh {
		t.Fatalf("ExpectedAccuracy = %v, want high", q.ExpectedAccuracy())
	}

	internal := NewInternalSource(store, nil)
	fallback := &stubSource{name: "fallback", shouldSearch: true}
	geoip := &stubSource{name: "geoip", shouldSearch: true}

	r := Run(context.Background(), q, []Source{internal, fallback, geoip})

	if !r.HasLatLon {
		t.Fatalf("Run = %+v, want a position", r)
	}
	if fallback.searched || geoip.searched {
		t.Errorf("later sources ran after internal already satisfied the query: fallback=%v geoip=%v",
			fallback.searched, geoip.searched)
	}
}

func TestRunSkipsSourceWhenShouldSearchFalse(t *testing.T) {
	q := query.New(query.APITypeLocate)

	skipped := &stubSource{name: "skipped", shouldSearch: false}
	fallback := &stubSource{name: "fallback", shouldSearch: true, result: result.Result{}}

	_ = Run(context.Background(), q, []Source{skipped, fallback})

	if skipped.searched {
		t.Errorf("Search ran on a source whose ShouldSearch reported false")
	}
	if !fallback.searched {
		t.Errorf("Search did not run on a source whose ShouldSearch reported true")
	}
}

func TestRunWifiOnlyRegionQueryReturnsEmpty(t *testing.T) {
	// Region queries gain no contribution from wifi alone (query.go's
	// ExpectedAccuracy): a wifi-only region query has expected accuracy
	// none, and with no IP and no cells, nothing in the pipeline can
	// possibly satisfy it.
	store := newFakeStore()
	store.wifis["aabbccddeeff"] = station.Fix{Lat: 51.5, Lon: -0.1, Radius: 30, LastSeen: time.Now()}
	store.wifis["112233445566"] = station.Fix{Lat: 51.501, Lon: -0.099, Radius: 40, LastSeen: time.Now()}

	q := query.New(query.APITypeRegion, query.WithWifis([]query.RawWifi{
		{MAC: "aa:bb:cc:dd:ee:ff", SignalStrength: intPtr(-50)},
		{MAC: "11:22:33:44:55:66", SignalStrength: intPtr(-60)},
	}))
	if q.ExpectedAccuracy() != result.DataAccuracyNone {
		t.Fatalf("ExpectedAccuracy = %v, want none for a wifi-only region query", q.ExpectedAccuracy())
	}

	internal := NewInternalSource(store, nil)
	geoip := NewGeoIPSource()

	r := Run(context.Background(), q, []Source{internal, geoip})

	if !r.Empty() {
		t.Errorf("Run = %+v, want empty for a wifi-only region query", r)
	}
}

func TestRunFallsThroughToGeoIPWhenEarlierSourcesEmpty(t *testing.T) {
	store := newFakeStore()
	q := query.New(query.APITypeLocate, query.WithAPIKey(apikey.APIKey{AllowFallback: false}),
		query.WithIP("81.2.69.160", fakeGeoDBFor(51.5, -0.1, 25000), nil))

	internal := NewInternalSource(store, nil)
	fallback := NewFallbackSource("http://example.invalid", nil, nil)
	geoip := NewGeoIPSource()

	r := Run(context.Background(), q, []Source{internal, fallback, geoip})

	if !r.HasLatLon || r.Source != "geoip" {
		t.Fatalf("Run = %+v, want the geoip source's position", r)
	}
}

func fakeGeoDBFor(lat, lon, radius float64) *fakeGeoDB {
	return &fakeGeoDB{found: true, record: geoipdb.Record{Lat: lat, Lon: lon, Radius: radius}}
}
