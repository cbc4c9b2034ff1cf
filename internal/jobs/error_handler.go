// Package jobs provides shared River job plumbing (error and panic handling).
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// ErrorHandler logs job errors and panics. Retry behavior is left to River.
type ErrorHandler struct{}

var _ river.ErrorHandler = (*ErrorHandler)(nil)

// HandleError is called when a job returns an error.
func (h *ErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	slog.ErrorContext(ctx, "job failed", append(jobAttrs(job), "error", err)...)

	return nil
}

// HandlePanic is called when a job panics. The job is marked errored and retried by River.
func (h *ErrorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	slog.ErrorContext(ctx, "job panicked", append(jobAttrs(job), "panic_value", panicVal, "stack_trace", trace)...)

	return nil
}

// jobAttrs returns the common log attributes; feedback_id is included when the args carry one.
func jobAttrs(job *rivertype.JobRow) []any {
	attrs := []any{
		"job_kind", job.Kind,
		"job_id", job.ID,
		"queue", job.Queue,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
	}

	var args struct {
		FeedbackID *int64 `json:"feedback_id"`
	}

	if err := json.Unmarshal(job.EncodedArgs, &args); err == nil && args.FeedbackID != nil {
		attrs = append(attrs, "feedback_id", *args.FeedbackID)
	}

	return attrs
}
