// Package worker provides background workers for the feedback insights API.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/formbricks/feedback-insights/internal/observability"
)

const defaultPurgeInterval = 5 * time.Minute

// ExpiredEntryPurger deletes expired cache entries and reports how many were removed.
type ExpiredEntryPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// CachePurgeWorker periodically deletes expired rows from the shared cache table.
// Expired rows are already ignored by reads; this only keeps the table small.
type CachePurgeWorker struct {
	purger   ExpiredEntryPurger
	interval time.Duration
	metrics  observability.CacheMetrics
}

// NewCachePurgeWorker creates a purge worker. metrics may be nil.
func NewCachePurgeWorker(purger ExpiredEntryPurger, interval time.Duration, metrics observability.CacheMetrics) *CachePurgeWorker {
	if interval <= 0 {
		interval = defaultPurgeInterval
	}

	return &CachePurgeWorker{
		purger:   purger,
		interval: interval,
		metrics:  metrics,
	}
}

// Start runs the purge loop until the context is cancelled.
func (w *CachePurgeWorker) Start(ctx context.Context) {
	slog.Info("cache purge worker started", "interval", w.interval)

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cache purge worker stopped")

			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce executes a single purge.
func (w *CachePurgeWorker) runOnce(ctx context.Context) {
	purged, err := w.purger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("cache purge failed", "error", err)
		}

		return
	}

	if w.metrics != nil && purged > 0 {
		w.metrics.RecordPurged(ctx, purged)
	}

	if purged > 0 {
		slog.Info("cache purge completed", "purged", purged)
	} else {
		slog.Debug("cache purge completed, nothing expired")
	}
}
