package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/formbricks/feedback-insights/internal/models"
	"github.com/formbricks/feedback-insights/internal/observability"
)

const analyzeFeedbackKind = "analyze_feedback"

// AnalysisQueueName is the River queue used for analysis jobs.
const AnalysisQueueName = "analysis"

// ErrAsyncDisabled is returned when an async analysis is requested but no job queue is configured.
var ErrAsyncDisabled = errors.New("async analysis is not enabled")

// AnalyzeFeedbackArgs is the job payload for analyzing one feedback item.
// Uniqueness is by FeedbackID and Force so repeated requests for the same item do not stack jobs,
// while a forced request is never swallowed by a queued non-forced one.
type AnalyzeFeedbackArgs struct {
	FeedbackID int64 `json:"feedback_id" river:"unique"`
	Force      bool  `json:"force" river:"unique"`
}

// Kind returns the River job kind.
func (AnalyzeFeedbackArgs) Kind() string { return analyzeFeedbackKind }

var _ river.JobArgs = AnalyzeFeedbackArgs{}

// AnalysisJobInserter inserts analysis jobs (e.g. River client).
type AnalysisJobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// PendingFeedbackLister lists items still waiting for their first analysis.
type PendingFeedbackLister interface {
	GetByID(ctx context.Context, id int64) (*models.Feedback, error)
	ListIDsByStatus(ctx context.Context, status models.AnalysisStatus, limit int) ([]int64, error)
}

// AnalysisJobs enqueues analysis work on River instead of running it in the request.
type AnalysisJobs struct {
	inserter    AnalysisJobInserter
	feedback    PendingFeedbackLister
	maxAttempts int
	metrics     observability.AnalysisMetrics
}

// NewAnalysisJobs creates an AnalysisJobs. A nil inserter makes every enqueue return ErrAsyncDisabled.
// metrics may be nil.
func NewAnalysisJobs(
	inserter AnalysisJobInserter, feedback PendingFeedbackLister, maxAttempts int, metrics observability.AnalysisMetrics,
) *AnalysisJobs {
	return &AnalysisJobs{inserter: inserter, feedback: feedback, maxAttempts: maxAttempts, metrics: metrics}
}

// EnqueueResult reports the job created (or reused) for an item.
type EnqueueResult struct {
	FeedbackID int64 `json:"feedback_id"`
	JobID      int64 `json:"job_id"`
	Duplicate  bool  `json:"duplicate"`
}

// Enqueue schedules analysis of one existing item.
func (j *AnalysisJobs) Enqueue(ctx context.Context, id int64, force bool) (*EnqueueResult, error) {
	if j == nil || j.inserter == nil {
		return nil, ErrAsyncDisabled
	}

	if _, err := j.feedback.GetByID(ctx, id); err != nil {
		return nil, err
	}

	return j.insert(ctx, id, force)
}

// EnqueuePending schedules every pending item, up to limit, and returns how many jobs were new.
func (j *AnalysisJobs) EnqueuePending(ctx context.Context, limit int) (int, error) {
	if j == nil || j.inserter == nil {
		return 0, ErrAsyncDisabled
	}

	ids, err := j.feedback.ListIDsByStatus(ctx, models.AnalysisStatusPending, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending feedback: %w", err)
	}

	enqueued := 0

	for _, id := range ids {
		res, err := j.insert(ctx, id, false)
		if err != nil {
			return enqueued, err
		}

		if !res.Duplicate {
			enqueued++
		}
	}

	slog.InfoContext(ctx, "pending feedback enqueued", "pending", len(ids), "enqueued", enqueued)

	return enqueued, nil
}

func (j *AnalysisJobs) insert(ctx context.Context, id int64, force bool) (*EnqueueResult, error) {
	res, err := j.inserter.Insert(ctx, AnalyzeFeedbackArgs{FeedbackID: id, Force: force}, &river.InsertOpts{
		Queue:       AnalysisQueueName,
		MaxAttempts: j.maxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStatePending,
				rivertype.JobStateRetryable,
				rivertype.JobStateRunning,
				rivertype.JobStateScheduled,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("insert analysis job: %w", err)
	}

	out := &EnqueueResult{FeedbackID: id, Duplicate: res.UniqueSkippedAsDuplicate}
	if res.Job != nil {
		out.JobID = res.Job.ID
	}

	if !out.Duplicate && j.metrics != nil {
		j.metrics.RecordJobsEnqueued(ctx, 1)
	}

	return out, nil
}
