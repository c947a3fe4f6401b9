// Package query implements the Query object: it canonicalizes and
// deduplicates a client's beacon observations, derives the GeoIP
// record and region for the originating IP, and computes the query's
// expected accuracy.
package query

import (
	"net"

	"github.com/ichnaea-go/locate/pkg/apikey"
	"github.com/ichnaea-go/locate/pkg/geoipdb"
	"github.com/ichnaea-go/locate/pkg/locate/result"
	"github.com/ichnaea-go/locate/pkg/locate/schema"
	"github.com/ichnaea-go/locate/pkg/monitoring"
	"github.com/ichnaea-go/locate/pkg/region"
)

// MinWifisInQuery is the privacy-preserving floor: fewer unique valid
// Wi-Fi APs than this and the whole wifi list is dropped.
const MinWifisInQuery = 2

// APIType enumerates the two query kinds the pipeline answers.
type APIType string

const (
	APITypeNone   APIType = "none"
	APITypeLocate APIType = "locate"
	APITypeRegion APIType = "region"
)

// RawCell is the client-supplied, not-yet-validated shape of one cell
// tower observation.
type RawCell struct {
	Radio           schema.Radio
	MCC, MNC        int
	LAC, CID        int
	PSC             *int
	SignalStrength  *int
	TimingAdvance   *int
	Age             *int
}

// RawWifi is the client-supplied, not-yet-validated shape of one
// Wi-Fi access point observation.
type RawWifi struct {
	MAC                string
	SignalStrength     *int
	SignalToNoiseRatio *int
	Channel            *int
	Frequency          *int
	Age                *int
	SSID               string
}

// Query holds the validated, deduplicated form of one client request.
type Query struct {
	APIType  APIType
	APIKey   apikey.APIKey
	HasKey   bool

	IP       net.IP
	GeoIP    geoipdb.Record
	HasGeoIP bool
	Region   string

	cell     []schema.CellLookup
	cellArea []schema.CellAreaLookup
	Wifi     []schema.WifiLookup
	Fallback schema.FallbackLookup
}

// Option configures a Query at construction time.
type Option func(*Query)

// WithAPIKey attaches the resolved API key record.
func WithAPIKey(key apikey.APIKey) Option {
	return func(q *Query) {
		q.APIKey = key
		q.HasKey = true
	}
}

// WithIP sets and resolves the originating IP against the GeoIP
// database and region geocoder.
func WithIP(ip string, geoDB geoipdb.DB, geocoder *region.Geocoder) Option {
	return func(q *Query) {
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return
		}
		q.IP = parsed

		if geoDB == nil {
			return
		}
		rec, ok := geoDB.Lookup(parsed)
		if !ok {
			return
		}
		q.GeoIP = rec
		q.HasGeoIP = true
		if rec.RegionCode != "" {
			q.Region = rec.RegionCode
		} else if geocoder != nil {
			if code, found := geocoder.Region(rec.Lat, rec.Lon); found {
				q.Region = code
			}
		}
	}
}

// WithFallback parses the raw fallback flag map.
func WithFallback(raw map[string]bool) Option {
	return func(q *Query) {
		q.Fallback = schema.NewFallbackLookup(raw)
	}
}

// WithCells validates and deduplicates the client's cell tower list,
// deriving both the per-station cell list and the per-area list.
func WithCells(raw []RawCell) Option {
	return func(q *Query) {
		var cells []schema.CellLookup
		var areas []schema.CellAreaLookup
		for _, r := range raw {
			c, ok := schema.NewCellLookup(r.Radio, r.MCC, r.MNC, r.LAC, r.CID, r.PSC, r.SignalStrength, r.TimingAdvance, r.Age)
			if !ok {
				continue
			}
			cells = append(cells, c)
			areas = append(areas, schema.CellAreaFromCell(c))
		}
		q.cell = schema.DedupCells(cells)
		q.cellArea = schema.DedupCellAreas(areas)
	}
}

// WithWifis validates and deduplicates the client's Wi-Fi list,
// dropping it entirely if fewer than MinWifisInQuery unique valid APs
// survive validation.
func WithWifis(raw []RawWifi) Option {
	return func(q *Query) {
		var wifis []schema.WifiLookup
		for _, r := range raw {
			w, ok := schema.NewWifiLookup(r.MAC, r.SignalStrength, r.SignalToNoiseRatio, r.Channel, r.Frequency, r.Age, r.SSID)
			if !ok {
				continue
			}
			wifis = append(wifis, w)
		}
		deduped := schema.DedupWifis(wifis)
		if len(deduped) < MinWifisInQuery {
			return
		}
		q.Wifi = deduped
	}
}

// New builds a Query from the given API type and options.
func New(apiType APIType, opts ...Option) *Query {
	q := &Query{
		APIType:  apiType,
		Fallback: schema.DefaultFallback(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Cell returns the deduplicated per-station cell list.
func (q *Query) Cell() []schema.CellLookup { return q.cell }

// CellArea returns the deduplicated per-area list, but only when
// fallback.lacf is enabled; otherwise it reads empty regardless of
// what was supplied.
func (q *Query) CellArea() []schema.CellAreaLookup {
	if !q.Fallback.LACF {
		return nil
	}
	return q.cellArea
}

// ExpectedAccuracy computes the query's achievable precision as the
// most precise (numerically smallest) DataAccuracy among applicable
// contributions.
func (q *Query) ExpectedAccuracy() result.DataAccuracy {
	best := result.DataAccuracyNone

	betterOf := func(a, b result.DataAccuracy) result.DataAccuracy {
		if a < b {
			return a
		}
		return b
	}

	if len(q.Wifi) > 0 {
		if q.APIType == APITypeLocate {
			best = betterOf(best, result.DataAccuracyHigh)
		}
		// wifi does not locate region: no contribution for APITypeRegion.
	}

	if len(q.cell) > 0 {
		switch q.APIType {
		case APITypeLocate:
			best = betterOf(best, result.DataAccuracyMedium)
		case APITypeRegion:
			best = betterOf(best, result.DataAccuracyLow)
		}
	}

	if (len(q.CellArea()) > 0) || (q.IP != nil && q.Fallback.IPF) {
		best = betterOf(best, result.DataAccuracyLow)
	}

	return best
}

// CollectMetrics reports whether this query's stats should be
// recorded at all: the API key must permit logging for this api_type
// and the query must be precise enough to be worth measuring.
func (q *Query) CollectMetrics() bool {
	if !q.HasKey {
		return false
	}
	if !q.APIKey.ShouldLog(string(q.APIType)) {
		return false
	}
	return q.ExpectedAccuracy() != result.DataAccuracyNone
}

// InternalQuery renders the canonical dictionary form of this query,
// the request body shape FallbackSource POSTs to the external
// fallback service. See pkg/locate/fallbackwire for the wire types.
func (q *Query) InternalQuery() map[string]interface{} {
	cells := make([]map[string]interface{}, 0, len(q.cell))
	for _, c := range q.cell {
		cell := map[string]interface{}{
			"radio": string(c.ID.Radio),
			"mcc":   c.ID.MCC,
			"mnc":   c.ID.MNC,
			"lac":   c.ID.LAC,
			"cid":   c.ID.CID,
		}
		if c.Signal != nil {
			cell["signal"] = *c.Signal
		}
		if c.TA != nil {
			cell["ta"] = *c.TA
		}
		cells = append(cells, cell)
	}

	wifis := make([]map[string]interface{}, 0, len(q.Wifi))
	for _, w := range q.Wifi {
		wifi := map[string]interface{}{"mac": w.MAC}
		if w.Signal != nil {
			wifi["signal"] = *w.Signal
		}
		if w.SNR != nil {
			wifi["snr"] = *w.SNR
		}
		wifis = append(wifis, wifi)
	}

	return map[string]interface{}{
		"cellTowers":      cells,
		"wifiAccessPoints": wifis,
		"fallbacks": map[string]bool{
			"lacf": q.Fallback.LACF,
			"ipf":  q.Fallback.IPF,
		},
	}
}

// EmitQueryStats records the per-query counters: query.py's
// emit_query_stats, gated by CollectMetrics.
func (q *Query) EmitQueryStats() {
	if !q.CollectMetrics() {
		return
	}
	region := q.Region
	if region == "" {
		region = "none"
	}
	monitoring.RecordQuery(string(q.APIType), region, len(q.cell), len(q.Wifi))
}

// EmitResultStats records the overall hit/miss outcome of a pipeline
// run against this query: query.py's emit_result_stats.
func (q *Query) EmitResultStats(r result.Result) {
	if !q.CollectMetrics() {
		return
	}
	hit := r.DataAccuracy() <= q.ExpectedAccuracy()
	monitoring.RecordResult(string(q.APIType), q.ExpectedAccuracy().String(), q.Fallback.IPF || q.Fallback.LACF, hit)
}

// EmitSourceStats records the hit/miss outcome a single source
// produced: query.py's emit_source_stats.
func (q *Query) EmitSourceStats(source string, r result.Result) {
	if !q.CollectMetrics() {
		return
	}
	hit := r.DataAccuracy() <= q.ExpectedAccuracy()
	monitoring.RecordSourceResult(source, r.DataAccuracy().String(), hit)
}
