package sources

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/ichnaea-go/locate/pkg/locate/fallbackwire"
	"github.com/ichnaea-go/locate/pkg/locate/query"
	"github.com/ichnaea-go/locate/pkg/locate/result"
	"github.com/ichnaea-go/locate/pkg/monitoring"
	"github.com/ichnaea-go/locate/pkg/ratelimit"
	"github.com/ichnaea-go/locate/pkg/tracing"
)

const (
	fallbackScore       = 0.5
	defaultFallbackTimeout = 5 * time.Second
	defaultFallbackRetries = 2
)

// FallbackResultCache is the caching contract FallbackSource consults
// before making an external call, and populates after one. See
// pkg/rediscache.FallbackCache for the Redis-backed implementation.
type FallbackResultCache interface {
	Get(ctx context.Context, fingerprint string) (fallbackwire.Response, bool)
	Set(ctx context.Context, fingerprint string, resp fallbackwire.Response)
}

// FallbackSource consults an external geolocation service, gated on
// the API key's allow_fallback permission and the query's fallback
// flags. It is the second source tried, after InternalSource.
type FallbackSource struct {
	Client      *http.Client
	Cache       FallbackResultCache
	HostLimiter *ratelimit.HostLimiter
	URL         string
	Timeout     time.Duration
	MaxRetries  int
}

// FallbackOption configures a FallbackSource at construction time.
type FallbackOption func(*FallbackSource)

// WithTimeout overrides the per-call bounded timeout.
func WithTimeout(d time.Duration) FallbackOption {
	return func(s *FallbackSource) { s.Timeout = d }
}

// WithMaxRetries overrides the retry budget for transient failures.
func WithMaxRetries(n int) FallbackOption {
	return func(s *FallbackSource) { s.MaxRetries = n }
}

// WithHostLimiter attaches a per-host outbound throttle.
func WithHostLimiter(l *ratelimit.HostLimiter) FallbackOption {
	return func(s *FallbackSource) { s.HostLimiter = l }
}

// NewFallbackSource builds a FallbackSource targeting url, using
// client for outbound calls and cache to dedupe repeated beacon sets.
func NewFallbackSource(url string, client *http.Client, cache FallbackResultCache, opts ...FallbackOption) *FallbackSource {
	s := &FallbackSource{
		Client:     client,
		Cache:      cache,
		URL:        url,
		Timeout:    defaultFallbackTimeout,
		MaxRetries: defaultFallbackRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FallbackSource) Name() string { return "fallback" }

// ShouldSearch gates the fallback source on the API key's
// allow_fallback permission and at least one enabled fallback flag --
// spec.md §4.4: "disabled unless api_key.allow_fallback and
// fallback.* flags enable it."
func (s *FallbackSource) ShouldSearch(q *query.Query, _ *result.ResultList) bool {
	if !q.HasKey || !q.APIKey.AllowFallback {
		return false
	}
	return q.Fallback.LACF || q.Fallback.IPF
}

// Search builds the request body from Query.InternalQuery(), checks
// the result cache, and on a miss POSTs to the external service with
// a bounded timeout and retry budget.
func (s *FallbackSource) Search(ctx context.Context, q *query.Query) result.Result {
	fingerprint := fingerprintQuery(q)

	if s.Cache != nil {
		if resp, ok := s.Cache.Get(ctx, fingerprint); ok {
			return responseToResult(resp, q.APIType)
		}
	}

	if s.HostLimiter != nil {
		if err := s.HostLimiter.Wait(ctx, requestHost(s.URL)); err != nil {
			return result.Result{}
		}
	}

	ctx, span := tracing.StartSpan(ctx, "locate.fallback.post")
	start := time.Now()
	resp, cacheable, err := s.post(ctx, q)
	duration := time.Since(start)
	success := err == nil
	monitoring.RecordExternalServiceRequest("fallback", "geolocate", duration, success)
	status := 0
	if success {
		status = http.StatusOK
	}
	span.SetAttributes(tracing.ServiceAttributes(tracing.ServiceFallback, "geolocate", s.URL, status)...)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	span.End()
	if err != nil {
		// Source-level failure: swallowed, never cached, never surfaced.
		return result.Result{}
	}

	if s.Cache != nil && cacheable {
		s.Cache.Set(ctx, fingerprint, resp)
	}

	return responseToResult(resp, q.APIType)
}

func (s *FallbackSource) post(ctx context.Context, q *query.Query) (fallbackwire.Response, bool, error) {
	body := buildRequest(q)
	data, err := json.Marshal(body)
	if err != nil {
		return fallbackwire.Response{}, false, fmt.Errorf("encoding fallback request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.Timeout)
		resp, cacheable, err := s.doOnce(callCtx, data)
		cancel()
		if err == nil {
			return resp, cacheable, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return fallbackwire.Response{}, false, lastErr
}

func (s *FallbackSource) doOnce(ctx context.Context, data []byte) (fallbackwire.Response, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(data))
	if err != nil {
		return fallbackwire.Response{}, false, fmt.Errorf("building fallback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fallbackwire.Response{}, false, fmt.Errorf("calling fallback service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// A documented "definitely no answer" response: cacheable.
		return fallbackwire.Response{}, true, nil
	}
	if resp.StatusCode >= 500 {
		return fallbackwire.Response{}, false, fmt.Errorf("fallback service returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fallbackwire.Response{}, false, fmt.Errorf("fallback service returned %d", resp.StatusCode)
	}

	var out fallbackwire.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fallbackwire.Response{}, false, fmt.Errorf("decoding fallback response: %w", err)
	}
	return out, true, nil
}

func buildRequest(q *query.Query) fallbackwire.Request {
	internal := q.InternalQuery()

	req := fallbackwire.Request{
		Fallbacks: fallbackwire.Fallbacks{
			LACF: q.Fallback.LACF,
			IPF:  q.Fallback.IPF,
		},
	}

	if raw, ok := internal["cellTowers"].([]map[string]interface{}); ok {
		for _, c := range raw {
			tower := fallbackwire.CellTower{
				Radio: fmt.Sprint(c["radio"]),
				MCC:   toInt(c["mcc"]),
				MNC:   toInt(c["mnc"]),
				LAC:   toInt(c["lac"]),
				CID:   toInt(c["cid"]),
			}
			if v, ok := c["signal"].(int); ok {
				tower.Signal = &v
			}
			if v, ok := c["ta"].(int); ok {
				tower.TA = &v
			}
			req.CellTowers = append(req.CellTowers, tower)
		}
	}
	if raw, ok := internal["wifiAccessPoints"].([]map[string]interface{}); ok {
		for _, w := range raw {
			ap := fallbackwire.WifiAccessPoint{MAC: fmt.Sprint(w["mac"])}
			if v, ok := w["signal"].(int); ok {
				ap.Signal = &v
			}
			if v, ok := w["snr"].(int); ok {
				ap.SNR = &v
			}
			req.WifiAccessPoints = append(req.WifiAccessPoints, ap)
		}
	}
	return req
}

// requestHost extracts the host:port a rate limiter should key on from
// a service URL, falling back to the raw string if it doesn't parse.
func requestHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

func toInt(v interface{}) int {
	if i, ok := v.(int); ok {
		return i
	}
	return 0
}

// fingerprintQuery computes a stable hash of the query's beacon set,
// used as the fallback cache key (spec.md §4.4).
func fingerprintQuery(q *query.Query) string {
	var parts []string
	for _, c := range q.Cell() {
		parts = append(parts, c.ID.String())
	}
	for _, w := range q.Wifi {
		parts = append(parts, w.MAC)
	}
	sort.Strings(parts)

	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func responseToResult(resp fallbackwire.Response, apiType query.APIType) result.Result {
	if resp.Empty() {
		return result.Result{}
	}

	r := result.Result{
		Score:        fallbackScore,
		Source:       "fallback",
		FromFallback: true,
	}
	if resp.Location != nil {
		r.Lat = resp.Location.Lat
		r.Lon = resp.Location.Lng
		r.HasLatLon = true
		if resp.Accuracy != nil {
			r.Accuracy = *resp.Accuracy
		}
	}
	if resp.CountryCode != "" {
		r.RegionCode = resp.CountryCode
		r.RegionName = resp.CountryName
	}
	return r
}
