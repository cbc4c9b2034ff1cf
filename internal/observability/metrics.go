package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/formbricks/feedback-insights/internal/config"
)

const (
	meterScope       = "github.com/formbricks/feedback-insights/internal/observability"
	cardinalityLimit = 2000
)

// latencyHistogramBoundaries are Prometheus-style buckets (seconds). Inference calls run for seconds,
// so the upper buckets reach further than plain HTTP latency needs.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60}

// Metrics holds all metric collectors. When metrics are disabled, NewMetrics returns nil.
// Components accept the individual interfaces and already handle nil.
type Metrics struct {
	Analysis AnalysisMetrics
	Cache    CacheMetrics
	API      APIMetrics
}

// NewMetrics creates every collector from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	analysis, err := NewAnalysisMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("analysis metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	return &Metrics{Analysis: analysis, Cache: cache, API: api}, nil
}

// MeterProvider is the SDK provider plus the /metrics handler backed by its private registry.
type MeterProvider struct {
	*sdkmetric.MeterProvider

	Handler http.Handler
}

// ServiceMeter returns the meter every collector is registered on.
func (p *MeterProvider) ServiceMeter() metric.Meter {
	return p.Meter(meterScope)
}

// ShutdownMeterProvider flushes and shuts down the MeterProvider. Safe to call with nil.
func ShutdownMeterProvider(ctx context.Context, provider *MeterProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}

	return nil
}

// NewMeterProvider creates a MeterProvider with a Prometheus exporter on a private registry.
// When cfg.OtelMetricsExporter is not "prometheus", returns (nil, nil).
func NewMeterProvider(cfg *config.Config) (*MeterProvider, error) {
	if cfg == nil || cfg.OtelMetricsExporter != "prometheus" {
		//nolint:nilnil // intentional: metrics disabled or unsupported exporter, caller checks for nil
		return nil, nil
	}

	res, err := newResource(cfg.OtelServiceName)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(prometheusexporter.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "insights_*_duration_seconds"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
		),
	)

	return &MeterProvider{
		MeterProvider: mp,
		Handler:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}
