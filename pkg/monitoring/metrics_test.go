package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialization(t *testing.T) {
	metrics := []prometheus.Collector{
		QueriesTotal,
		QueryCellBucket,
		QueryWifiBucket,
		ResultsTotal,
		SourceResultsTotal,
		QueryDuration,
		ExternalServiceRequestsTotal,
		ExternalServiceRequestDuration,
		RateLimitExceeded,
		RateLimitWaitTime,
		CacheHits,
		CacheMisses,
		CacheSize,
		ActiveConnections,
		ErrorsTotal,
		SystemInfo,
		GoRoutines,
		MemoryUsage,
		GCRuns,
		GeoIPDatabaseAgeDays,
	}

	for _, metric := range metrics {
		if metric == nil {
			t.Error("Metric is nil")
		}
	}
}

func TestBucket(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{0, "none"},
		{1, "one"},
		{2, "many"},
		{7, "many"},
	}
	for _, c := range cases {
		if got := Bucket(c.n); got != c.want {
			t.Errorf("Bucket(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}

func TestRecordQuery(t *testing.T) {
	QueriesTotal.Reset()
	QueryCellBucket.Reset()
	QueryWifiBucket.Reset()

	RecordQuery("locate", "GB", 1, 0)

	if got := testutil.ToFloat64(QueriesTotal.WithLabelValues("locate", "GB")); got != 1 {
		t.Errorf("expected 1 query, got %v", got)
	}
	if got := testutil.ToFloat64(QueryCellBucket.WithLabelValues("locate", "one")); got != 1 {
		t.Errorf("expected 1 one-cell query, got %v", got)
	}
	if got := testutil.ToFloat64(QueryWifiBucket.WithLabelValues("locate", "none")); got != 1 {
		t.Errorf("expected 1 no-wifi query, got %v", got)
	}
}

func TestRecordResult(t *testing.T) {
	ResultsTotal.Reset()

	RecordResult("locate", "medium", true, true)
	if got := testutil.ToFloat64(ResultsTotal.WithLabelValues("locate", "medium", "true", "hit")); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}

	RecordResult("locate", "none", false, false)
	if got := testutil.ToFloat64(ResultsTotal.WithLabelValues("locate", "none", "false", "miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
}

func TestRecordSourceResult(t *testing.T) {
	SourceResultsTotal.Reset()

	RecordSourceResult("internal", "high", true)
	if got := testutil.ToFloat64(SourceResultsTotal.WithLabelValues("internal", "high", "hit")); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
}

func TestRecordExternalServiceRequest(t *testing.T) {
	ExternalServiceRequestsTotal.Reset()

	RecordExternalServiceRequest("fallback", "geolocate", 500*time.Millisecond, true)
	if got := testutil.ToFloat64(ExternalServiceRequestsTotal.WithLabelValues("fallback", "geolocate", "success")); got != 1 {
		t.Errorf("expected 1 successful external request, got %v", got)
	}

	RecordExternalServiceRequest("fallback", "geolocate", 300*time.Millisecond, false)
	if got := testutil.ToFloat64(ExternalServiceRequestsTotal.WithLabelValues("fallback", "geolocate", "error")); got != 1 {
		t.Errorf("expected 1 failed external request, got %v", got)
	}
}

func TestCacheMetrics(t *testing.T) {
	CacheHits.Reset()
	CacheMisses.Reset()
	CacheSize.Reset()

	RecordCacheHit("test_cache")
	if got := testutil.ToFloat64(CacheHits.WithLabelValues("test_cache")); got != 1 {
		t.Errorf("Expected 1 cache hit, got %v", got)
	}

	RecordCacheMiss("test_cache")
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("test_cache")); got != 1 {
		t.Errorf("Expected 1 cache miss, got %v", got)
	}

	UpdateCacheSize("test_cache", 42)
	if got := testutil.ToFloat64(CacheSize.WithLabelValues("test_cache")); got != 42 {
		t.Errorf("Expected cache size 42, got %v", got)
	}
}

func TestRateLimitMetrics(t *testing.T) {
	RateLimitExceeded.Reset()
	RateLimitWaitTime.Reset()

	RecordRateLimitExceeded("test_service")
	if got := testutil.ToFloat64(RateLimitExceeded.WithLabelValues("test_service")); got != 1 {
		t.Errorf("Expected 1 rate limit exceeded, got %v", got)
	}

	RecordRateLimitWait("test_service", 1*time.Second)
}

func TestErrorMetrics(t *testing.T) {
	ErrorsTotal.Reset()

	RecordError("test_component", "test_error")
	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues("test_component", "test_error")); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
}

func TestUpdateActiveConnections(t *testing.T) {
	ActiveConnections.Reset()

	UpdateActiveConnections("http", "client", 5)
	if got := testutil.ToFloat64(ActiveConnections.WithLabelValues("http", "client")); got != 5 {
		t.Errorf("Expected 5 active connections, got %v", got)
	}
}

func BenchmarkRecordQuery(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RecordQuery("locate", "GB", 1, 2)
	}
}

func BenchmarkRecordResult(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RecordResult("locate", "medium", true, true)
	}
}

func BenchmarkRecordCacheHit(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RecordCacheHit("benchmark_cache")
	}
}
