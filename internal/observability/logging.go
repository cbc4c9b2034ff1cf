package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// requestIDKey is the context key for the request ID (X-Request-ID).
// Middleware sets it; the TraceContextHandler adds it to log records.
type requestIDKey struct{}

// RequestIDKey is the context key for storing the request ID.
var RequestIDKey = &requestIDKey{}

type feedbackIDKey struct{}

// WithFeedbackID returns a context whose log records carry feedback_id.
// The analysis orchestrator and the River worker set it around one item's processing.
func WithFeedbackID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, feedbackIDKey{}, id)
}

// FeedbackIDFromContext returns the feedback id stored by WithFeedbackID.
func FeedbackIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(feedbackIDKey{}).(int64)

	return id, ok
}

// ParseLevel maps debug|info|warn|error (case-insensitive) to a slog level; unknown values are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogging installs a text handler on stdout wrapped in TraceContextHandler as the default logger.
func SetupLogging(level string) {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)})
	slog.SetDefault(slog.New(NewTraceContextHandler(handler)))
}

// TraceContextHandler wraps a slog.Handler and injects trace_id, span_id, request_id and feedback_id
// from the context into each log record when present.
type TraceContextHandler struct {
	inner slog.Handler
}

// NewTraceContextHandler returns a handler that adds trace context and request ids to records.
func NewTraceContextHandler(inner slog.Handler) *TraceContextHandler {
	return &TraceContextHandler{inner: inner}
}

// Enabled reports whether the inner handler is enabled for the given level.
func (h *TraceContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds context attributes to the record, then forwards to the inner handler.
func (h *TraceContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}

	if id, ok := FeedbackIDFromContext(ctx); ok {
		r.AddAttrs(slog.Int64("feedback_id", id))
	}

	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("inner handler: %w", err)
	}

	return nil
}

// WithAttrs returns a handler whose attributes are the concatenation of the inner's and attrs.
func (h *TraceContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceContextHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a handler for the given group.
func (h *TraceContextHandler) WithGroup(name string) slog.Handler {
	return &TraceContextHandler{inner: h.inner.WithGroup(name)}
}
