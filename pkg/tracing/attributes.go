package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for locate pipeline operations
const (
	// Query attributes
	AttrAPIType          = "locate.api_type"
	AttrExpectedAccuracy = "locate.expected_accuracy"
	AttrRegion           = "locate.region"

	// Source attributes
	AttrSourceName   = "locate.source.name"
	AttrSourceStatus = "locate.source.status"

	// External service attributes
	AttrServiceName      = "locate.service.name"
	AttrServiceOperation = "locate.service.operation"
	AttrServiceURL       = "locate.service.url"
	AttrServiceStatus    = "locate.service.status"

	// Cache attributes
	AttrCacheType = "locate.cache.type"
	AttrCacheHit  = "locate.cache.hit"
	AttrCacheKey  = "locate.cache.key"

	// Rate limiting attributes
	AttrRateLimitService = "locate.ratelimit.service"
	AttrRateLimitWaitMs  = "locate.ratelimit.wait_ms"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusRateLimited = "rate_limited"
)

// Service names for external collaborators
const (
	ServiceFallback = "fallback"
	ServiceGeoIP    = "geoip"
	ServiceInternal = "internal"
	ServiceRedis    = "redis"
)

// Cache types
const (
	CacheTypeFallback = "fallback"
)

// Helper functions for common attributes

// QueryAttributes returns attributes describing a query.
func QueryAttributes(apiType, expectedAccuracy, region string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAPIType, apiType),
		attribute.String(AttrExpectedAccuracy, expectedAccuracy),
		attribute.String(AttrRegion, region),
	}
}

// SourceAttributes returns attributes for a source run.
func SourceAttributes(source, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSourceName, source),
		attribute.String(AttrSourceStatus, status),
	}
}

// ServiceAttributes returns attributes for external service calls
func ServiceAttributes(service, operation, url string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceName, service),
		attribute.String(AttrServiceOperation, operation),
		attribute.String(AttrServiceURL, url),
		attribute.Int(AttrServiceStatus, status),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
