package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerScope = "github.com/formbricks/feedback-insights/internal/service"

// newTraceExporter returns the exporter for OTEL_TRACES_EXPORTER, or nil for an unknown name.
// otlp is configured from the standard OTEL_EXPORTER_OTLP_* env vars; stdout pretty-prints spans.
func newTraceExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case "otlp":
		exp, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("create OTLP HTTP trace exporter: %w", err)
		}

		return exp, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}

		return exp, nil
	default:
		return nil, nil
	}
}

// StartInferenceSpan starts a client span around one inference call. The returned func ends the
// span and marks it failed when err is non-nil. Without a tracer provider the span is a no-op.
func StartInferenceSpan(ctx context.Context, model string, attempt int) (context.Context, func(err error)) {
	ctx, span := otel.Tracer(tracerScope).Start(ctx, "inference.analyze",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("inference.model", model),
			attribute.Int("inference.attempt", attempt),
		),
	)

	if id, ok := FeedbackIDFromContext(ctx); ok {
		span.SetAttributes(attribute.Int64("feedback.id", id))
	}

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}
}
