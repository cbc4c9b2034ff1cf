package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CacheMetrics records cache hit/miss metrics with bounded cardinality (cache name).
type CacheMetrics interface {
	RecordHit(ctx context.Context, cacheName string)
	RecordMiss(ctx context.Context, cacheName string)
	RecordPurged(ctx context.Context, count int64)
}

// cacheMetrics implements CacheMetrics.
type cacheMetrics struct {
	hits   metric.Int64Counter
	misses metric.Int64Counter
	purged metric.Int64Counter
}

// NewCacheMetrics creates CacheMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	hitDesc := "Number of cache lookups that returned a cached value. " +
		"Label cache: analysis, digest, similar. " +
		"Hit ratio = rate(hits) / (rate(hits) + rate(misses)) per cache."

	hits, err := meter.Int64Counter(
		MetricNameCacheHits, metric.WithDescription(hitDesc), metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache hits counter: %w", err)
	}

	missDesc := "Number of cache lookups that missed (absent or expired) and triggered a recomputation. " +
		"Label cache: analysis, digest, similar."

	misses, err := meter.Int64Counter(
		MetricNameCacheMisses, metric.WithDescription(missDesc), metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache misses counter: %w", err)
	}

	purged, err := meter.Int64Counter(
		MetricNameCachePurged,
		metric.WithDescription("Number of expired cache_entries rows deleted by the purge worker."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache purged counter: %w", err)
	}

	return &cacheMetrics{hits: hits, misses: misses, purged: purged}, nil
}

func attrCache(name string) attribute.KeyValue {
	return attribute.String(AttrCache, NormalizeCacheName(name))
}

func (c *cacheMetrics) RecordHit(ctx context.Context, cacheName string) {
	c.hits.Add(ctx, 1, metric.WithAttributes(attrCache(cacheName)))
}

func (c *cacheMetrics) RecordMiss(ctx context.Context, cacheName string) {
	c.misses.Add(ctx, 1, metric.WithAttributes(attrCache(cacheName)))
}

func (c *cacheMetrics) RecordPurged(ctx context.Context, count int64) {
	c.purged.Add(ctx, count)
}
