// Package workers provides River job workers.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
	"github.com/formbricks/feedback-insights/internal/observability"
	"github.com/formbricks/feedback-insights/internal/service"
)

const defaultAnalyzeTimeout = 2 * time.Minute

// analyzer is the minimal interface needed by the worker.
type analyzer interface {
	Analyze(ctx context.Context, id int64, force bool) (*models.AIAnalysis, error)
}

// AnalyzeFeedbackWorker runs the analysis orchestrator for one queued item.
type AnalyzeFeedbackWorker struct {
	river.WorkerDefaults[service.AnalyzeFeedbackArgs]

	analyzer analyzer
	timeout  time.Duration
}

// NewAnalyzeFeedbackWorker creates the worker. A non-positive timeout uses the default.
func NewAnalyzeFeedbackWorker(a analyzer, timeout time.Duration) *AnalyzeFeedbackWorker {
	if timeout <= 0 {
		timeout = defaultAnalyzeTimeout
	}

	return &AnalyzeFeedbackWorker{analyzer: a, timeout: timeout}
}

// Timeout limits how long a single analysis job can run (inference plus one parse retry).
func (w *AnalyzeFeedbackWorker) Timeout(*river.Job[service.AnalyzeFeedbackArgs]) time.Duration {
	return w.timeout
}

// Work analyzes the item. Missing items and persisted analysis failures cancel the job: the
// failure is already recorded on the item and a new attempt needs a fresh request.
// Other errors (store outages) are returned so River retries.
func (w *AnalyzeFeedbackWorker) Work(ctx context.Context, job *river.Job[service.AnalyzeFeedbackArgs]) error {
	ctx = observability.WithFeedbackID(ctx, job.Args.FeedbackID)

	result, err := w.analyzer.Analyze(ctx, job.Args.FeedbackID, job.Args.Force)

	switch {
	case err == nil:
		slog.InfoContext(ctx, "analysis job completed", "job_id", job.ID, "sentiment", result.Sentiment.Label)

		return nil
	case errors.Is(err, huberrors.ErrNotFound):
		slog.WarnContext(ctx, "analysis job: feedback not found", "job_id", job.ID)

		return river.JobCancel(err)
	case errors.Is(err, huberrors.ErrAnalysisFailed):
		return river.JobCancel(err)
	default:
		return fmt.Errorf("analyze feedback: %w", err)
	}
}
