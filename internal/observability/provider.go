package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/formbricks/feedback-insights/internal/config"
)

const defaultServiceName = "feedback-insights"

// newResource returns a resource carrying the service name merged with the SDK default.
func newResource(serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("merge resource: %w", err)
	}

	return res, nil
}

// NewTracerProvider creates a TracerProvider when tracing is enabled.
// When cfg.OtelTracesExporter is empty or unknown, returns (nil, nil).
func NewTracerProvider(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if cfg == nil || cfg.OtelTracesExporter == "" {
		//nolint:nilnil // intentional: tracing disabled, caller checks for nil
		return nil, nil
	}

	exp, err := newTraceExporter(ctx, cfg.OtelTracesExporter)
	if err != nil {
		return nil, err
	}

	if exp == nil {
		//nolint:nilnil // unknown exporter value: treat as disabled, caller checks for nil
		return nil, nil
	}

	res, err := newResource(cfg.OtelServiceName)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFromEnv()),
		sdktrace.WithBatcher(exp),
	), nil
}

// ShutdownTracerProvider flushes and shuts down the TracerProvider. Safe to call with nil.
func ShutdownTracerProvider(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer provider shutdown: %w", err)
	}

	return nil
}
