// Package geoipdb adapts a MaxMind-format GeoIP database to the
// read-only lookup contract the Query and GeoIPSource depend on.
// Reloading the underlying file is done by atomic pointer swap so
// in-flight lookups never observe a half-loaded database.
package geoipdb

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/ichnaea-go/locate/pkg/validate"
)

// Record is the subset of a GeoIP lookup the locate pipeline cares
// about: a coarse position, per-variant accuracy radii, and the
// resolved region. GeoIPSource derives its own confidence score from
// the accuracy these radii classify to (pkg/score.GeoIPScore); Record
// itself carries no score.
type Record struct {
	Lat          float64
	Lon          float64
	Radius       float64 // meters, used for position (locate) results
	RegionRadius float64 // meters, used for region-query results
	RegionCode   string
	RegionName   string
}

// DB is the read-only lookup contract consumed by the Query and
// GeoIPSource. The production database file loader is an external
// collaborator; DB is the interface it must satisfy.
type DB interface {
	Lookup(ip net.IP) (Record, bool)
	// AgeInDays reports the age of the loaded database, surfaced by
	// the monitor endpoint's geoip.age_in_days field.
	AgeInDays() float64
}

// MMDB wraps a github.com/oschwald/geoip2-golang reader, exposing it
// through the DB contract and supporting atomic hot-reload.
type MMDB struct {
	reader atomic.Pointer[loadedReader]
}

type loadedReader struct {
	reader   *geoip2.Reader
	loadedAt time.Time
}

// NewMMDB opens the mmdb file at path and wraps it.
func NewMMDB(path string) (*MMDB, error) {
	m := &MMDB{}
	if err := m.Reload(path); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload atomically replaces the underlying database with the file at
// path, without disrupting in-flight lookups against the old one.
func (m *MMDB) Reload(path string) error {
	r, err := geoip2.Open(path)
	if err != nil {
		return fmt.Errorf("opening geoip database %q: %w", path, err)
	}
	m.reader.Store(&loadedReader{reader: r, loadedAt: time.Now()})
	return nil
}

// Lookup resolves an IP to a coarse position and region. The position
// radius is the database's own accuracy radius, or 25km when the
// record carries none; RegionRadius is always a fixed country-scale
// 200km, not a per-region figure.
func (m *MMDB) Lookup(ip net.IP) (Record, bool) {
	loaded := m.reader.Load()
	if loaded == nil {
		return Record{}, false
	}

	city, err := loaded.reader.City(ip)
	if err != nil || city.Country.IsoCode == "" {
		return Record{}, false
	}
	if err := validate.Coords(city.Location.Latitude, city.Location.Longitude); err != nil {
		// The mmdb file is an external collaborator; guard against a
		// corrupt or malformed record rather than trust it blindly.
		return Record{}, false
	}

	rec := Record{
		Lat:          city.Location.Latitude,
		Lon:          city.Location.Longitude,
		Radius:       float64(city.Location.AccuracyRadius) * 1000,
		RegionRadius: 200000,
		RegionCode:   city.Country.IsoCode,
		RegionName:   city.Country.Names["en"],
	}
	if rec.Radius <= 0 {
		rec.Radius = 25000
	}
	return rec, true
}

// AgeInDays reports how long ago the currently loaded database file
// was opened.
func (m *MMDB) AgeInDays() float64 {
	loaded := m.reader.Load()
	if loaded == nil {
		return -1
	}
	return time.Since(loaded.loadedAt).Hours() / 24
}
