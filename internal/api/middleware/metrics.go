package middleware

import (
	"net/http"
	"regexp"
	"time"

	"github.com/formbricks/feedback-insights/internal/observability"
)

// Numeric path segment (feedback ids), e.g. /api/analyze/42.
var idSegmentRegex = regexp.MustCompile(`/[0-9]+(/|$)`)

// Metrics returns middleware that records HTTP request count and duration.
// When metrics is nil, recording is skipped. Put Metrics outermost so duration is full request time.
func Metrics(metrics observability.APIMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)

				return
			}

			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			metrics.RecordRequest(r.Context(), r.Method, normalizeRoute(r.URL.Path), rw.statusCode, time.Since(start))
		})
	}
}

// normalizeRoute replaces id path segments with {id} to bound cardinality.
func normalizeRoute(path string) string {
	return idSegmentRegex.ReplaceAllString(path, "/{id}$1")
}
