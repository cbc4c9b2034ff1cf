package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// APIMetrics records HTTP-level metrics.
type APIMetrics interface {
	RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration)
	RecordRequestBodyTooLarge(ctx context.Context)
}

// apiMetrics implements APIMetrics.
type apiMetrics struct {
	requestCount        metric.Int64Counter
	requestDuration     metric.Float64Histogram
	requestBodyTooLarge metric.Int64Counter
}

// NewAPIMetrics creates APIMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewAPIMetrics(meter metric.Meter) (APIMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requestCount, err := meter.Int64Counter(
		MetricNameRequestCount,
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("create request count counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		MetricNameRequestDuration,
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create request duration histogram: %w", err)
	}

	desc := "Total number of requests rejected because the request body exceeded the configured limit (413)."

	tooLarge, err := meter.Int64Counter(
		MetricNameRequestBodyTooLarge,
		metric.WithDescription(desc),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create request body too large counter: %w", err)
	}

	return &apiMetrics{
		requestCount:        requestCount,
		requestDuration:     requestDuration,
		requestBodyTooLarge: tooLarge,
	}, nil
}

func (a *apiMetrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	attrs := attribute.NewSet(
		attribute.String(AttrMethod, method),
		attribute.String(AttrRoute, route),
		attribute.String(AttrStatus, NormalizeStatusClass(status)),
	)
	a.requestCount.Add(ctx, 1, metric.WithAttributeSet(attrs))

	durAttrs := attribute.NewSet(
		attribute.String(AttrMethod, method),
		attribute.String(AttrRoute, route),
	)
	a.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(durAttrs))
}

func (a *apiMetrics) RecordRequestBodyTooLarge(ctx context.Context) {
	a.requestBodyTooLarge.Add(ctx, 1)
}
