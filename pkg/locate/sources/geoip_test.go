package sources

import (
	"context"
	"net"
	"testing"

	"github.com/ichnaea-go/locate/pkg/geoipdb"
	"github.com/ichnaea-go/locate/pkg/locate/query"
	"github.com/ichnaea-go/locate/pkg/locate/result"
)

type fakeGeoDB struct {
	record geoipdb.Record
	found  bool
}

func (f *fakeGeoDB) Lookup(net.IP) (geoipdb.Record, bool) { return f.record, f.found }
func (f *fakeGeoDB) AgeInDays() float64                   { return 1 }

func TestGeoIPSourceReturnsPositionForLocate(t *testing.T) {
	db := &fakeGeoDB{found: true, record: geoipdb.Record{
		Lat: 51.5, Lon: -0.1, Radius: 25000, RegionCode: "GB", RegionName: "United Kingdom",
	}}
	q := query.New(query.APITypeLocate, query.WithIP("81.2.69.160", db, nil))

	src := NewGeoIPSource()
	var accumulated result.ResultList
	if !src.ShouldSearch(q, &accumulated) {
		t.Fatalf("ShouldSearch = false, want true")
	}

	r := src.Search(context.Background(), q)
	if !r.HasLatLon || r.Accuracy != 25000 {
		t.Fatalf("Search = %+v, want position with accuracy 25000", r)
	}
	if r.Score <= 0.5 || r.Score >= 1.0 {
		t.Errorf("Search score = %v, want strictly between 0.5 and 1.0 (spec.md §8 scenario 1)", r.Score)
	}
}

func TestGeoIPSourceEmptyLookupStillSearches(t *testing.T) {
	db := &fakeGeoDB{found: false}
	q := query.New(query.APITypeLocate, query.WithIP("127.0.0.1", db, nil))

	// query.WithIP only looks up geoip if the address parses; 127.0.0.1
	// parses fine, but the fake reports not found.
	src := NewGeoIPSource()
	if !src.ShouldSearch(q, &result.ResultList{}) {
		t.Fatalf("ShouldSearch = false, want true (IP is set even on a GeoIP miss)")
	}
	r := src.Search(context.Background(), q)
	if !r.Empty() {
		t.Fatalf("Search on GeoIP miss = %+v, want empty", r)
	}
}

func TestGeoIPSourceRegionQueryUsesRegionRadius(t *testing.T) {
	db := &fakeGeoDB{found: true, record: geoipdb.Record{
		RegionCode: "BT", RegionName: "Bhutan", RegionRadius: 180000,
	}}
	q := query.New(query.APITypeRegion, query.WithIP("67.43.156.1", db, nil))

	src := NewGeoIPSource()
	r := src.Search(context.Background(), q)
	if r.HasLatLon {
		t.Errorf("region query returned a position, want region only")
	}
	if r.RegionCode != "BT" || r.Accuracy != 180000 {
		t.Errorf("Search = %+v, want BT at 180000", r)
	}
}

func TestGeoIPSourceNoIPDoesNotSearch(t *testing.T) {
	q := query.New(query.APITypeLocate)
	src := NewGeoIPSource()
	if src.ShouldSearch(q, &result.ResultList{}) {
		t.Fatalf("ShouldSearch = true with no IP, want false")
	}
}

func TestGeoIPSourceIPFDisabledDoesNotSearch(t *testing.T) {
	db := &fakeGeoDB{found: true, record: geoipdb.Record{
		Lat: 51.5, Lon: -0.1, Radius: 25000, RegionCode: "GB", RegionName: "United Kingdom",
	}}
	q := query.New(query.APITypeLocate,
		query.WithFallback(map[string]bool{"ipf": false}),
		query.WithIP("81.2.69.160", db, nil),
	)

	src := NewGeoIPSource()
	if src.ShouldSearch(q, &result.ResultList{}) {
		t.Fatalf("ShouldSearch = true with fallback.ipf=false, want false (spec.md §8 scenario 3)")
	}
}
