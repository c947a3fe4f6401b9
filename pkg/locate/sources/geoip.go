package sources

import (
	"context"

	"github.com/ichnaea-go/locate/pkg/locate/query"
	"github.com/ichnaea-go/locate/pkg/locate/result"
	"github.com/ichnaea-go/locate/pkg/score"
)

// GeoIPSource builds a Result from the GeoIP record the Query already
// resolved for the originating IP. It is the last source tried, only
// reached if nothing earlier satisfied the query.
type GeoIPSource struct{}

// NewGeoIPSource builds a GeoIPSource. It has no configuration: the
// GeoIP lookup itself already happened when the Query was built (see
// query.WithIP), this source only shapes the resolved record into a
// Result.
func NewGeoIPSource() *GeoIPSource {
	return &GeoIPSource{}
}

func (s *GeoIPSource) Name() string { return "geoip" }

// ShouldSearch reports whether the query has an IP at all and the
// client has not disabled IP-based fallback. Per spec.md §9's
// documented (if undocumented-as-intentional) quirk, once ipf is
// enabled this is true whenever query.ip is set, even if the GeoIP
// lookup itself came up empty -- an empty stats-emit still occurs for
// that case, it just isn't a satisfying result. With fallback.ipf
// false the source is gated out entirely (spec.md §8 scenario 3).
func (s *GeoIPSource) ShouldSearch(q *query.Query, _ *result.ResultList) bool {
	return q.IP != nil && q.Fallback.IPF
}

// Search reports the resolved GeoIP record as a Result. The accuracy
// field used depends on api_type: region queries use the GeoIP
// record's region-level radius, position queries use its city-level
// radius. The score reflects how coarse that accuracy turned out to
// be (score.GeoIPScore), not a single fixed confidence value.
func (s *GeoIPSource) Search(_ context.Context, q *query.Query) result.Result {
	if !q.HasGeoIP {
		return result.Result{}
	}

	r := result.Result{Source: s.Name()}

	switch q.APIType {
	case query.APITypeRegion:
		r.RegionCode = q.GeoIP.RegionCode
		r.RegionName = q.GeoIP.RegionName
		r.Accuracy = q.GeoIP.RegionRadius
	default:
		r.Lat = q.GeoIP.Lat
		r.Lon = q.GeoIP.Lon
		r.HasLatLon = true
		r.Accuracy = q.GeoIP.Radius
		r.RegionCode = q.GeoIP.RegionCode
		r.RegionName = q.GeoIP.RegionName
	}
	r.Score = score.GeoIPScore(r.DataAccuracy())
	return r
}
