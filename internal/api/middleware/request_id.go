package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/formbricks/feedback-insights/internal/observability"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
)

// RequestID runs first in the chain: ensures every request has an X-Request-ID in context
// and in the response header. A usable client-supplied id is propagated; otherwise a UUIDv7 is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !validRequestID(id) {
			id = uuid.Must(uuid.NewV7()).String()
		}

		ctx := context.WithValue(r.Context(), observability.RequestIDKey, id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validRequestID accepts short ids made of printable ASCII; the id ends up in every log line.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}

	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}

	return true
}
