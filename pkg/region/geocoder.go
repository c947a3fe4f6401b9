// Package region implements the reverse-geocoder: an immutable,
// concurrency-safe spatial index over region polygons supporting
// point-in-region, any-region, region-for-cell-MCC, and distance-based
// tie-breaking, built once at startup from a packed GeoJSON region
// dataset and shared by every subsequent query.
package region

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/ichnaea-go/locate/pkg/geo"
)

// Geocoder is the immutable, precomputed region index described in
// spec.md §3. It is built once at process startup and is safe for
// concurrent reads from many goroutines; none of its methods mutate
// state.
type Geocoder struct {
	shapes         map[string]orb.Geometry
	preparedShapes map[string]orb.Geometry // identical to shapes; kept as its own field so the two concerns (exact vs. fast-contains) stay distinct, per spec.md §3
	bufferedShapes map[string]orb.Geometry
	radii          map[string]float64
	tree           *rtreego.Rtree
	validRegions   []string
}

// Option configures Geocoder construction.
type Option func(*geocoderConfig)

type geocoderConfig struct {
	minChildren, maxChildren int
	buffer                   float64
}

// WithTreeBranching overrides the R-tree's min/max children per node.
// The defaults (25, 50) are the values rtreego's own tests use and
// are reasonable for a dataset with one entry per country.
func WithTreeBranching(min, max int) Option {
	return func(c *geocoderConfig) {
		c.minChildren = min
		c.maxChildren = max
	}
}

// WithBufferDegrees overrides the coastal-capture buffer distance, in
// degrees. Defaults to spec.md's documented 0.5.
func WithBufferDegrees(degrees float64) Option {
	return func(c *geocoderConfig) {
		c.buffer = degrees
	}
}

type regionEnvelope struct {
	rect rtreego.Rect
	code string
}

func (e *regionEnvelope) Bounds() *rtreego.Rect {
	return &e.rect
}

// feature is the subset of each GeoJSON feature's properties the
// dataset carries: alpha2 region code and enclosing-circle radius.
type regionProperties struct {
	Alpha2 string
	Radius float64
}

func extractProperties(props geojson.Properties) regionProperties {
	var p regionProperties
	if v, ok := props["alpha2"]; ok {
		if s, ok := v.(string); ok {
			p.Alpha2 = s
		}
	}
	switch v := props["radius"].(type) {
	case float64:
		p.Radius = v
	case json.Number:
		f, _ := v.Float64()
		p.Radius = f
	}
	return p
}

// NewGeocoder builds a Geocoder from a gzip-compressed GeoJSON
// FeatureCollection (spec.md §6's regions.geojson.gz), keeping only
// features whose alpha2 code is a recognized GENC region.
func NewGeocoder(r io.Reader, opts ...Option) (*Geocoder, error) {
	cfg := geocoderConfig{minChildren: 25, maxChildren: 50, buffer: bufferDegrees}
	for _, opt := range opts {
		opt(&cfg)
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening region dataset: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("reading region dataset: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing region dataset: %w", err)
	}

	g := &Geocoder{
		shapes:         make(map[string]orb.Geometry),
		preparedShapes: make(map[string]orb.Geometry),
		bufferedShapes: make(map[string]orb.Geometry),
		radii:          make(map[string]float64),
	}

	tree := rtreego.NewTree(2, cfg.minChildren, cfg.maxChildren)

	for _, feat := range fc.Features {
		props := extractProperties(feat.Properties)
		if props.Alpha2 == "" || !IsGENCCode(props.Alpha2) {
			continue
		}

		g.shapes[props.Alpha2] = feat.Geometry
		g.preparedShapes[props.Alpha2] = feat.Geometry
		g.radii[props.Alpha2] = props.Radius

		buffered := bufferGeometry(feat.Geometry, cfg.buffer)
		g.bufferedShapes[props.Alpha2] = buffered

		for _, env := range envelopes(buffered) {
			rect, err := envelopeToRect(env)
			if err != nil {
				continue
			}
			tree.Insert(&regionEnvelope{rect: rect, code: props.Alpha2})
		}
	}

	g.tree = tree

	g.validRegions = make([]string, 0, len(g.shapes))
	for code := range g.shapes {
		g.validRegions = append(g.validRegions, code)
	}
	sort.Strings(g.validRegions)

	return g, nil
}

// envelopes returns one bounding box per polygon part of geom, so a
// multipart buffered shape gets a separate R-tree entry per part
// (spec.md §4.1's "index each part's envelope separately").
func envelopes(geom orb.Geometry) []orb.Bound {
	switch g := geom.(type) {
	case orb.Polygon:
		if len(g) == 0 {
			return nil
		}
		return []orb.Bound{g.Bound()}
	case orb.MultiPolygon:
		bounds := make([]orb.Bound, 0, len(g))
		for _, poly := range g {
			if len(poly) == 0 {
				continue
			}
			bounds = append(bounds, poly.Bound())
		}
		return bounds
	default:
		return nil
	}
}

// minEnvelopeSpan is the smallest nonzero extent rtreego will accept
// for a rectangle side; degenerate (point or line) envelopes get
// padded to this so NewRect never rejects them.
const minEnvelopeSpan = 1e-9

func envelopeToRect(b orb.Bound) (rtreego.Rect, error) {
	width := b.Max[0] - b.Min[0]
	height := b.Max[1] - b.Min[1]
	if width < minEnvelopeSpan {
		width = minEnvelopeSpan
	}
	if height < minEnvelopeSpan {
		height = minEnvelopeSpan
	}
	rect, err := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{width, height})
	if err != nil {
		return rtreego.Rect{}, err
	}
	return rect, nil
}

// candidateCodes returns the deduplicated, insertion-ordered set of
// region codes whose buffered envelope covers (lat, lon), per the
// R-tree probe in spec.md §4.1 step 1.
func (g *Geocoder) candidateCodes(lat, lon float64) []string {
	rect, err := envelopeToRect(orb.Bound{Min: orb.Point{lon, lat}, Max: orb.Point{lon, lat}})
	if err != nil {
		return nil
	}

	var codes []string
	seen := make(map[string]bool)
	for _, raw := range g.tree.SearchIntersect(&rect) {
		entry := raw.(*regionEnvelope)
		if seen[entry.code] {
			continue
		}
		seen[entry.code] = true
		codes = append(codes, entry.code)
	}
	return codes
}

func containsPoint(geom orb.Geometry, pt orb.Point) bool {
	switch g := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		for _, poly := range g {
			if planar.PolygonContains(poly, pt) {
				return true
			}
		}
	}
	return false
}

func boundaryVertices(geom orb.Geometry) []orb.Point {
	var pts []orb.Point
	switch g := geom.(type) {
	case orb.Polygon:
		for _, ring := range g {
			pts = append(pts, ring...)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			for _, ring := range poly {
				pts = append(pts, ring...)
			}
		}
	}
	return pts
}

// tieBreak implements spec.md §4.1 step 6-7, mirroring
// original_source/ichnaea/geocode.py's region() tie-break exactly: for
// every candidate code, compute the Haversine distance from (lat, lon)
// to EVERY boundary coordinate of that candidate's exact shape (not
// just its nearest vertex), writing each distance->code pair into one
// flat map shared across all candidates, in candidate order and then
// per-candidate coordinate order, so that an exact distance collision
// is resolved by last-writer-wins (the same dict-overwrite behavior
// the Python source exhibits). The winner is then the code owning the
// single minimum (pickMax=false, "outside, pick nearest vertex of any
// candidate") or single maximum (pickMax=true, "inside multiple, pick
// the farthest vertex of any candidate") distance key in that flat map
// -- not a per-region nearest-vertex distance compared across regions.
func (g *Geocoder) tieBreak(lat, lon float64, codes []string, pickMax bool) (string, bool) {
	if len(codes) == 0 {
		return "", false
	}

	distanceToCode := make(map[float64]string)
	best := math.Inf(1)
	if pickMax {
		best = math.Inf(-1)
	}
	haveBest := false

	for _, code := range codes {
		for _, p := range boundaryVertices(g.shapes[code]) {
			d := geo.HaversineDistance(lat, lon, p[1], p[0])
			distanceToCode[d] = code
			if !haveBest {
				best = d
				haveBest = true
				continue
			}
			if pickMax && d > best {
				best = d
			}
			if !pickMax && d < best {
				best = d
			}
		}
	}
	if !haveBest {
		return "", false
	}
	return distanceToCode[best], true
}

// Region reverse-geocodes a point to a region code, following the
// R-tree prefilter -> buffered containment -> exact refinement ->
// distance tie-break cascade in spec.md §4.1.
func (g *Geocoder) Region(lat, lon float64) (string, bool) {
	pt := orb.Point{lon, lat}

	var survivors []string
	for _, code := range g.candidateCodes(lat, lon) {
		if containsPoint(g.bufferedShapes[code], pt) {
			survivors = append(survivors, code)
		}
	}
	if len(survivors) == 0 {
		return "", false
	}
	if len(survivors) == 1 {
		return survivors[0], true
	}

	var exact []string
	for _, code := range survivors {
		if containsPoint(g.shapes[code], pt) {
			exact = append(exact, code)
		}
	}
	if len(exact) == 1 {
		return exact[0], true
	}
	if len(exact) == 0 {
		// No exact region contains the point: pick the nearest buffered
		// candidate's boundary (outside -> nearest).
		return g.tieBreak(lat, lon, survivors, false)
	}
	// Multiple exact regions contain the point: pick the one whose
	// boundary is farthest away (inside -> deepest / most-inside).
	return g.tieBreak(lat, lon, exact, true)
}

// AnyRegion reports whether any region's buffered shape covers the
// point, without the exact-shape refinement Region performs.
func (g *Geocoder) AnyRegion(lat, lon float64) bool {
	pt := orb.Point{lon, lat}
	for _, code := range g.candidateCodes(lat, lon) {
		if containsPoint(g.bufferedShapes[code], pt) {
			return true
		}
	}
	return false
}

// InRegion reports whether the named region's buffered shape covers
// the point. Unknown codes report false.
func (g *Geocoder) InRegion(lat, lon float64, code string) bool {
	geom, ok := g.bufferedShapes[code]
	if !ok {
		return false
	}
	return containsPoint(geom, orb.Point{lon, lat})
}

// RegionsForMCC maps a mobile country code to the region codes it can
// plausibly identify, through the alias table and intersected with
// the set of regions this Geocoder actually has shapes for.
func (g *Geocoder) RegionsForMCC(mcc int) []string {
	raw, ok := mccToRegions[mcc]
	if !ok {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, code := range raw {
		if alias, ok := mccAlias[code]; ok {
			code = alias
		}
		if seen[code] {
			continue
		}
		if _, known := g.shapes[code]; !known {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

// RegionForCell resolves a region for a cell observation: if the
// MCC's plausible regions narrow to exactly one whose buffered shape
// contains the point, that wins; otherwise it falls back to the
// full-precision Region lookup (ignoring the MCC hint on ambiguity).
func (g *Geocoder) RegionForCell(lat, lon float64, mcc int) (string, bool) {
	plausible := g.RegionsForMCC(mcc)
	pt := orb.Point{lon, lat}

	var contained []string
	for _, code := range plausible {
		if containsPoint(g.bufferedShapes[code], pt) {
			contained = append(contained, code)
		}
	}

	switch len(contained) {
	case 0:
		return g.Region(lat, lon)
	case 1:
		return contained[0], true
	default:
		return g.Region(lat, lon)
	}
}

// RegionMaxRadius returns the maximum enclosing-circle radius for a
// known region code, in meters.
func (g *Geocoder) RegionMaxRadius(code string) (float64, bool) {
	r, ok := g.radii[code]
	return r, ok
}

// ValidRegions returns the sorted list of region codes this Geocoder
// has shapes for.
func (g *Geocoder) ValidRegions() []string {
	return g.validRegions
}

// RegionName always returns the empty string: the Geocoder keeps only
// alpha2 + radius from the dataset it loads, so it has no display
// names. Deployments that want names pair this Geocoder with a small
// static alpha2->name table of their own (e.g. via GeoIP's own
// RegionName field, see pkg/geoipdb).
func (g *Geocoder) RegionName(code string) string {
	return ""
}
