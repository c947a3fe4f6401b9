package sources

import (
	"context"
	"sort"
	"time"

	"github.com/ichnaea-go/locate/pkg/geo"
	"github.com/ichnaea-go/locate/pkg/locate/query"
	"github.com/ichnaea-go/locate/pkg/locate/result"
	"github.com/ichnaea-go/locate/pkg/locate/schema"
	"github.com/ichnaea-go/locate/pkg/locate/station"
	"github.com/ichnaea-go/locate/pkg/region"
	"github.com/ichnaea-go/locate/pkg/score"
	"github.com/ichnaea-go/locate/pkg/validate"
)

// StationStaleAfter is the maximum age a stored station fix may have
// before InternalSource stops trusting it (spec.md §4.5 step 1).
const StationStaleAfter = 365 * 24 * time.Hour

// MaxWifiClusterMeters is the greedy clustering radius spec.md §4.5
// calls MAX_WIFI_CLUSTER_KM, expressed in meters and left
// configurable via WithMaxWifiCluster.
const MaxWifiClusterMeters = 500.0

const (
	cellMatchScore = 0.6
	mccRegionScore = 0.4
)

// InternalSource consults the crowd-sourced local data store: Wi-Fi
// and cell position fixes, and the region Geocoder's MCC table for
// region queries. It is the first source tried in a locate query.
type InternalSource struct {
	Store            station.Store
	Geocoder         *region.Geocoder
	MaxWifiCluster   float64
	MaxResultAge     time.Duration
}

// NewInternalSource builds an InternalSource with spec-documented
// defaults, overridable via Option.
func NewInternalSource(store station.Store, geocoder *region.Geocoder, opts ...InternalOption) *InternalSource {
	s := &InternalSource{
		Store:          store,
		Geocoder:       geocoder,
		MaxWifiCluster: MaxWifiClusterMeters,
		MaxResultAge:   StationStaleAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InternalOption configures an InternalSource at construction time.
type InternalOption func(*InternalSource)

// WithMaxWifiCluster overrides the greedy clustering radius.
func WithMaxWifiCluster(meters float64) InternalOption {
	return func(s *InternalSource) { s.MaxWifiCluster = meters }
}

// WithMaxResultAge overrides the station-fix staleness threshold.
func WithMaxResultAge(d time.Duration) InternalOption {
	return func(s *InternalSource) { s.MaxResultAge = d }
}

func (s *InternalSource) Name() string { return "internal" }

// ShouldSearch reports whether any capability this source offers
// applies to the query: for locate, wifi or cell; for region, cell
// (via MCC). A query with no api_type set never searches.
func (s *InternalSource) ShouldSearch(q *query.Query, _ *result.ResultList) bool {
	switch q.APIType {
	case query.APITypeLocate:
		return len(q.Wifi) > 0 || len(q.Cell()) > 0
	case query.APITypeRegion:
		return len(q.Cell()) > 0 || len(q.CellArea()) > 0
	default:
		return false
	}
}

// Search tries wifi first (if applicable), then cell, short-circuiting
// as soon as an intermediate result already satisfies the query -- the
// same early-termination contract the outer orchestrator applies
// across sources, applied here across this source's own capabilities
// (spec.md §4.4).
func (s *InternalSource) Search(ctx context.Context, q *query.Query) result.Result {
	var local result.ResultList

	if q.APIType == query.APITypeLocate {
		if len(q.Wifi) > 0 {
			local.Add(s.searchWifi(ctx, q))
			if local.Satisfies(q.ExpectedAccuracy()) {
				return local.Best()
			}
		}
		if len(q.Cell()) > 0 {
			local.Add(s.searchCell(ctx, q))
		}
		return local.Best()
	}

	// Region query: only the MCC path applies.
	return s.searchMCC(ctx, q)
}

func (s *InternalSource) searchWifi(ctx context.Context, q *query.Query) result.Result {
	macs := make([]string, len(q.Wifi))
	bySignal := make(map[string]*int, len(q.Wifi))
	for i, w := range q.Wifi {
		macs[i] = w.MAC
		bySignal[w.MAC] = w.Signal
	}

	fixes, err := s.Store.LoadWifis(ctx, macs)
	if err != nil {
		return result.Result{}
	}

	type member struct {
		mac    string
		fix    station.Fix
		signal *int
	}
	var candidates []member
	cutoff := time.Now().Add(-s.MaxResultAge)
	for _, mac := range macs {
		fix, ok := fixes[mac]
		if !ok || fix.LastSeen.Before(cutoff) {
			continue
		}
		if err := validate.Coords(fix.Lat, fix.Lon); err != nil {
			continue
		}
		candidates = append(candidates, member{mac: mac, fix: fix, signal: bySignal[mac]})
	}
	if len(candidates) == 0 {
		return result.Result{}
	}

	// Seed the cluster on the strongest-signal AP, then greedily add
	// the nearest remaining AP within MaxWifiCluster, repeating until
	// no more candidates qualify.
	sort.Slice(candidates, func(i, j int) bool {
		return signalWeight(candidates[i].signal) > signalWeight(candidates[j].signal)
	})

	cluster := []member{candidates[0]}
	remaining := candidates[1:]
	for {
		seedLat, seedLon := cluster[0].fix.Lat, cluster[0].fix.Lon
		bestIdx := -1
		bestDist := s.MaxWifiCluster
		for i, c := range remaining {
			d := geo.HaversineDistance(seedLat, seedLon, c.fix.Lat, c.fix.Lon)
			if d <= bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		cluster = append(cluster, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	if len(cluster) < query.MinWifisInQuery {
		return result.Result{}
	}

	members := make([]geo.WeightedMember, len(cluster))
	signalWeights := make([]float64, len(cluster))
	for i, c := range cluster {
		signalWeights[i] = signalWeight(c.signal)
		members[i] = geo.WeightedMember{
			Lat:    c.fix.Lat,
			Lon:    c.fix.Lon,
			Radius: c.fix.Radius,
			Weight: signalWeights[i] * geo.InverseSquareWeight(c.fix.Radius),
		}
	}
	lat, lon, _, ok := geo.WeightedCentroid(members)
	if !ok {
		return result.Result{}
	}

	accuracy := 0.0
	weakestRadius := 0.0
	for _, c := range cluster {
		d := geo.HaversineDistance(lat, lon, c.fix.Lat, c.fix.Lon)
		if d > accuracy {
			accuracy = d
		}
		if c.fix.Radius > weakestRadius {
			weakestRadius = c.fix.Radius
		}
	}
	if weakestRadius > accuracy {
		accuracy = weakestRadius
	}

	normalized := make([]float64, len(signalWeights))
	for i, w := range signalWeights {
		normalized[i] = w / 200.0
	}

	return result.Result{
		Lat:       lat,
		Lon:       lon,
		HasLatLon: true,
		Accuracy:  accuracy,
		Score:     score.Bounded(score.WeightedScore(score.ClusterScore(len(cluster)), normalized)),
		Source:    s.Name(),
	}
}

// signalWeight converts a dBm signal reading into a positive fusion
// weight: stronger (less negative) signals dominate the centroid.
// Missing signal gets a neutral, below-average weight.
func signalWeight(signal *int) float64 {
	if signal == nil {
		return 50
	}
	w := float64(*signal) + 200
	if w < 1 {
		return 1
	}
	return w
}

func (s *InternalSource) searchCell(ctx context.Context, q *query.Query) result.Result {
	cells := q.Cell()
	ids := make([]schema.CellID, len(cells))
	for i, c := range cells {
		ids[i] = c.ID
	}

	fixes, err := s.Store.LoadCells(ctx, ids)
	if err != nil {
		return result.Result{}
	}

	cutoff := time.Now().Add(-s.MaxResultAge)
	var best *schema.CellLookup
	var bestFix station.Fix
	for i := range cells {
		fix, ok := fixes[cells[i].ID]
		if !ok || fix.LastSeen.Before(cutoff) {
			continue
		}
		if err := validate.Coords(fix.Lat, fix.Lon); err != nil {
			continue
		}
		if best == nil || cells[i].Better(*best) {
			best = &cells[i]
			bestFix = fix
		}
	}
	if best == nil {
		return result.Result{}
	}

	return result.Result{
		Lat:       bestFix.Lat,
		Lon:       bestFix.Lon,
		HasLatLon: true,
		Accuracy:  bestFix.Radius,
		Score:     cellMatchScore,
		Source:    s.Name(),
	}
}

func (s *InternalSource) searchMCC(ctx context.Context, q *query.Query) result.Result {
	mccs := make(map[int]bool)
	for _, c := range q.Cell() {
		mccs[c.ID.MCC] = true
	}
	for _, c := range q.CellArea() {
		mccs[c.ID.MCC] = true
	}
	if len(mccs) == 0 || s.Geocoder == nil {
		return result.Result{}
	}

	candidates := make(map[string]bool)
	for mcc := range mccs {
		for _, code := range s.Geocoder.RegionsForMCC(mcc) {
			candidates[code] = true
		}
	}
	if len(candidates) != 1 {
		return result.Result{}
	}

	var code string
	for c := range candidates {
		code = c
	}
	radius, _ := s.Geocoder.RegionMaxRadius(code)
	return result.Result{
		RegionCode: code,
		Accuracy:   radius,
		Score:      mccRegionScore,
		Source:     s.Name(),
	}
}
