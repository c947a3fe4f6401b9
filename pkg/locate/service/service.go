// Package service ties the locate pipeline's pieces together into the
// single call an HTTP (or any other transport) layer would make: API
// key lookup, the daily rate-limit check, query construction, and the
// source cascade, surfacing the typed locateerr taxonomy spec.md §7
// documents. The inbound wire schema and transport itself remain out
// of scope (spec.md §1); this is the boundary a transport adapts to.
package service

import (
	"context"
	"fmt"
	"net"

	"github.com/ichnaea-go/locate/pkg/apikey"
	"github.com/ichnaea-go/locate/pkg/geoipdb"
	"github.com/ichnaea-go/locate/pkg/locate/query"
	"github.com/ichnaea-go/locate/pkg/locate/result"
	"github.com/ichnaea-go/locate/pkg/locate/sources"
	"github.com/ichnaea-go/locate/pkg/locateerr"
	"github.com/ichnaea-go/locate/pkg/ratelimit"
	"github.com/ichnaea-go/locate/pkg/region"
)

// Service bundles the collaborators one locate or region request needs.
type Service struct {
	APIKeys     apikey.Store
	DailyLimit  ratelimit.DailyLimiter
	GeoDB       geoipdb.DB
	Geocoder    *region.Geocoder
	Sources     []sources.Source
}

// Request is the already-deserialized shape of one client request; a
// transport layer is responsible for parsing its own wire format into
// this, including folding considerIp into the ipf fallback flag
// (spec.md §6).
type Request struct {
	APIKey   string
	APIType  query.APIType
	IP       string
	Cells    []query.RawCell
	Wifis    []query.RawWifi
	Fallback map[string]bool
}

// validAPIType reports whether t is one of the API types spec.md §4.3
// allows a query to be constructed for; anything else is an
// invalid-argument error.
func validAPIType(t query.APIType) bool {
	switch t {
	case query.APITypeNone, query.APITypeLocate, query.APITypeRegion:
		return true
	}
	return false
}

// Locate resolves one request end to end: API key lookup, daily
// rate-limit enforcement, query construction, and the source cascade.
// Errors are always a *locateerr.Error so callers can map directly to
// spec.md §7's HTTP status taxonomy.
func (s *Service) Locate(ctx context.Context, req Request) (result.Result, error) {
	if !validAPIType(req.APIType) {
		return result.Result{}, locateerr.InvalidInput(fmt.Sprintf("unknown api_type %q", req.APIType))
	}

	key, ok := s.APIKeys.Lookup(req.APIKey)
	if !ok {
		return result.Result{}, locateerr.InvalidAPIKey()
	}

	if s.DailyLimit != nil {
		allowed, err := s.DailyLimit.Allow(ctx, key.Name, string(req.APIType), key.MaxRequests)
		if err != nil {
			return result.Result{}, locateerr.BackendUnavailable("rate limiter", err)
		}
		if !allowed {
			return result.Result{}, locateerr.RateLimited(key.Name)
		}
	}

	opts := []query.Option{
		query.WithAPIKey(key),
		query.WithFallback(req.Fallback),
		query.WithCells(req.Cells),
		query.WithWifis(req.Wifis),
	}
	if req.IP != "" && net.ParseIP(req.IP) != nil {
		opts = append(opts, query.WithIP(req.IP, s.GeoDB, s.Geocoder))
	}

	q := query.New(req.APIType, opts...)
	q.EmitQueryStats()

	r := sources.Run(ctx, q, s.Sources)
	if r.Empty() {
		return result.Result{}, locateerr.NotFound()
	}
	return r, nil
}
