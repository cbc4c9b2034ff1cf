// Package observability provides OpenTelemetry metrics and tracing for the feedback insights API.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameCacheHits            = "insights_cache_hits_total"
	MetricNameCacheMisses          = "insights_cache_misses_total"
	MetricNameCachePurged          = "insights_cache_entries_purged_total"
	MetricNameAnalysisOutcomes     = "insights_analysis_outcomes_total"
	MetricNameAnalysisParseRetries = "insights_analysis_parse_retries_total"
	MetricNameAnalysisJobsEnqueued = "insights_analysis_jobs_enqueued_total"
	MetricNameInferenceDuration    = "insights_inference_duration_seconds"
	MetricNameRequestCount         = "insights_http_requests_total"
	MetricNameRequestDuration      = "insights_http_request_duration_seconds"
	MetricNameRequestBodyTooLarge  = "insights_request_body_too_large_total"
	MetricNameMalformedThemes      = "insights_malformed_themes_total"
)

// Attribute keys.
const (
	AttrCache   = "cache"
	AttrOutcome = "outcome"
	AttrStatus  = "status_class"
	AttrMethod  = "method"
	AttrRoute   = "route"
	AttrReader  = "reader"
)

// Cache names used as the cache attribute.
const (
	CacheNameAnalysis = "analysis"
	CacheNameDigest   = "digest"
	CacheNameSimilar  = "similar"
)

// Analysis outcomes used as the outcome attribute.
const (
	OutcomeCached    = "cached"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeNotFound  = "not_found"
)

var allowedCacheNames = map[string]bool{
	CacheNameAnalysis: true,
	CacheNameDigest:   true,
	CacheNameSimilar:  true,
}

var allowedOutcomes = map[string]bool{
	OutcomeCached:    true,
	OutcomeCompleted: true,
	OutcomeFailed:    true,
	OutcomeNotFound:  true,
}

// NormalizeCacheName returns name if it is a known cache, otherwise "other".
func NormalizeCacheName(name string) string {
	return normalize(name, allowedCacheNames)
}

// NormalizeOutcome returns outcome if it is a known analysis outcome, otherwise "other".
func NormalizeOutcome(outcome string) string {
	return normalize(outcome, allowedOutcomes)
}

// NormalizeStatusClass maps an HTTP status code to 2xx..5xx; anything else is "other".
func NormalizeStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func normalize(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}

	return "other"
}
