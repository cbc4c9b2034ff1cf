package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AnalysisMetrics records analysis pipeline metrics (orchestrator, similarity, digest, jobs).
type AnalysisMetrics interface {
	RecordOutcome(ctx context.Context, outcome string)
	RecordParseRetry(ctx context.Context)
	RecordInferenceDuration(ctx context.Context, duration time.Duration, outcome string)
	RecordJobsEnqueued(ctx context.Context, count int64)
	// RecordMalformedThemes counts stored themes_json rows a reader ("similarity", "digest") had to skip.
	RecordMalformedThemes(ctx context.Context, reader string)
}

// analysisMetrics implements AnalysisMetrics.
type analysisMetrics struct {
	outcomes     metric.Int64Counter
	parseRetries metric.Int64Counter
	duration     metric.Float64Histogram
	jobsEnqueued metric.Int64Counter
	malformed    metric.Int64Counter
}

// NewAnalysisMetrics creates AnalysisMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewAnalysisMetrics(meter metric.Meter) (AnalysisMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	outcomes, err := meter.Int64Counter(
		MetricNameAnalysisOutcomes,
		metric.WithDescription("Analyze calls by outcome (cached, completed, failed, not_found)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analysis outcomes counter: %w", err)
	}

	parseRetries, err := meter.Int64Counter(
		MetricNameAnalysisParseRetries,
		metric.WithDescription("Inference responses that failed schema validation and were retried"),
	)
	if err != nil {
		return nil, fmt.Errorf("create parse retries counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameInferenceDuration,
		metric.WithDescription("Inference call duration in seconds, including response validation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create inference duration histogram: %w", err)
	}

	jobsEnqueued, err := meter.Int64Counter(
		MetricNameAnalysisJobsEnqueued,
		metric.WithDescription("Analysis jobs enqueued to River"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analysis jobs enqueued counter: %w", err)
	}

	malformed, err := meter.Int64Counter(
		MetricNameMalformedThemes,
		metric.WithDescription("Stored theme rows skipped because they could not be decoded"),
	)
	if err != nil {
		return nil, fmt.Errorf("create malformed themes counter: %w", err)
	}

	return &analysisMetrics{
		outcomes:     outcomes,
		parseRetries: parseRetries,
		duration:     duration,
		jobsEnqueued: jobsEnqueued,
		malformed:    malformed,
	}, nil
}

func (m *analysisMetrics) RecordOutcome(ctx context.Context, outcome string) {
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, NormalizeOutcome(outcome))))
}

func (m *analysisMetrics) RecordParseRetry(ctx context.Context) {
	m.parseRetries.Add(ctx, 1)
}

func (m *analysisMetrics) RecordInferenceDuration(ctx context.Context, duration time.Duration, outcome string) {
	m.duration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String(AttrOutcome, NormalizeOutcome(outcome))))
}

func (m *analysisMetrics) RecordJobsEnqueued(ctx context.Context, count int64) {
	m.jobsEnqueued.Add(ctx, count)
}

func (m *analysisMetrics) RecordMalformedThemes(ctx context.Context, reader string) {
	switch reader {
	case "similarity", "digest":
	default:
		reader = "other"
	}

	m.malformed.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReader, reader)))
}
