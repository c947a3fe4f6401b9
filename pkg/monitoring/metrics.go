package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// ServiceName is the name used for metrics and resource attribution.
	ServiceName = "locate"
)

var (
	// QueriesTotal counts incoming locate/region queries by API type and
	// resolved region code ("none" when none was resolved), mirroring
	// emit_query_stats.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locate_queries_total",
			Help: "Total number of locate queries processed",
		},
		[]string{"api_type", "region"},
	)

	// QueryCellBucket and QueryWifiBucket track how many cell/wifi
	// lookups a query carried, bucketed as none/one/many.
	QueryCellBucket = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locate_query_cell_bucket_total",
			Help: "Queries by number of cell lookups (none, one, many)",
		},
		[]string{"api_type", "bucket"},
	)

	QueryWifiBucket = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locate_query_wifi_bucket_total",
			Help: "Queries by number of wifi lookups (none, one, many)",
		},
		[]string{"api_type", "bucket"},
	)

	// ResultsTotal counts locate results by expected accuracy, whether
	// fallback was allowed, and hit/miss status, mirroring
	// emit_result_stats.
	ResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locate_results_total",
			Help: "Total number of locate results, by accuracy and hit/miss status",
		},
		[]string{"api_type", "accuracy", "fallback_allowed", "status"},
	)

	// SourceResultsTotal counts the status (hit/miss) produced by each
	// source in the pipeline, mirroring emit_source_stats.
	SourceResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locate_source_results_total",
			Help: "Total number of per-source locate results, by source and status",
		},
		[]string{"source", "accuracy", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "locate_query_duration_seconds",
			Help:    "Locate query duration in seconds, end to end",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"api_type"},
	)

	// External service metrics (fallback HTTP service, geoip db, redis).
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locate_external_service_requests_total",
			Help: "Total number of external service requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "locate_external_service_request_duration_seconds",
			Help:    "External service request duration in seconds",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locate_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"service"},
	)

	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "locate_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Cache metrics (in-process LRU + redis tiers)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locate_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locate_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "locate_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "locate_active_connections",
			Help: "Number of active connections",
		},
		[]string{"transport", "type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locate_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "locate_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "locate_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "locate_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	GCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "locate_gc_runs_total",
			Help: "Total number of garbage collection runs",
		},
	)

	// GeoIPDatabaseAgeDays reports the age of the loaded GeoIP database,
	// surfaced by the monitor endpoint's geoip.age_in_days field.
	GeoIPDatabaseAgeDays = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "locate_geoip_database_age_days",
			Help: "Age in days of the currently loaded GeoIP database",
		},
	)
)

// ServiceHealth and ConnStatus describe the /__monitor__-equivalent
// health payload.
type ServiceHealth struct {
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	Status        string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime        time.Duration          `json:"uptime"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	StartTime     time.Time              `json:"start_time,omitempty"`
	Connections   map[string]ConnStatus  `json:"connections"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
}

type ConnStatus struct {
	Name      string `json:"name,omitempty"`
	Status    string `json:"status"` // "connected", "disconnected", "error"
	Latency   int64  `json:"latency_ms,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Bucket classifies a lookup count into the none/one/many tags used by
// query stats, matching the Python "0, 1, many" tagging.
func Bucket(n int) string {
	switch {
	case n == 0:
		return "none"
	case n == 1:
		return "one"
	default:
		return "many"
	}
}

// RecordQuery records that a query was accepted for processing.
func RecordQuery(apiType, region string, cellCount, wifiCount int) {
	QueriesTotal.WithLabelValues(apiType, region).Inc()
	QueryCellBucket.WithLabelValues(apiType, Bucket(cellCount)).Inc()
	QueryWifiBucket.WithLabelValues(apiType, Bucket(wifiCount)).Inc()
}

// RecordQueryDuration records the end-to-end duration of a query.
func RecordQueryDuration(apiType string, d time.Duration) {
	QueryDuration.WithLabelValues(apiType).Observe(d.Seconds())
}

// RecordResult records the final hit/miss outcome of a query.
func RecordResult(apiType, accuracy string, fallbackAllowed bool, hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	ResultsTotal.WithLabelValues(apiType, accuracy, boolTag(fallbackAllowed), status).Inc()
}

// RecordSourceResult records the outcome a single source produced.
func RecordSourceResult(source, accuracy string, hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	SourceResultsTotal.WithLabelValues(source, accuracy, status).Inc()
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, status).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

func RecordRateLimitExceeded(service string) {
	RateLimitExceeded.WithLabelValues(service).Inc()
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func UpdateActiveConnections(transport, connType string, count int) {
	ActiveConnections.WithLabelValues(transport, connType).Set(float64(count))
}
