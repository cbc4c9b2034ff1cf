package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/formbricks/feedback-insights/internal/api/response"
	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
	"github.com/formbricks/feedback-insights/internal/service"
)

// Analyzer runs (or returns the cached) analysis of one feedback item.
type Analyzer interface {
	Analyze(ctx context.Context, id int64, force bool) (*models.AIAnalysis, error)
}

// AnalysisEnqueuer schedules an analysis on the job queue.
type AnalysisEnqueuer interface {
	Enqueue(ctx context.Context, id int64, force bool) (*service.EnqueueResult, error)
}

// AnalysisHandler handles analysis requests.
type AnalysisHandler struct {
	analyzer Analyzer
	jobs     AnalysisEnqueuer
}

// NewAnalysisHandler creates an AnalysisHandler. jobs may be nil when async analysis is disabled.
func NewAnalysisHandler(analyzer Analyzer, jobs AnalysisEnqueuer) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer, jobs: jobs}
}

// Analyze handles POST /api/analyze/{id}?force=true|1&async=true|1
//
// Synchronous runs return the analysis (200). async=true enqueues a job and returns 202.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		response.RespondBadRequest(w, "Invalid feedback ID")

		return
	}

	force := queryFlag(r, "force")

	if queryFlag(r, "async") {
		h.enqueue(w, r, id, force)

		return
	}

	result, err := h.analyzer.Analyze(r.Context(), id, force)
	if err != nil {
		var failed *huberrors.AnalysisFailedError

		switch {
		case errors.Is(err, huberrors.ErrNotFound):
			response.RespondNotFound(w, "Feedback not found")
		case errors.As(err, &failed):
			response.RespondAnalysisFailed(w, failed.FeedbackID, failed.Message)
		default:
			slog.ErrorContext(r.Context(), "analyze feedback", "feedback_id", id, "error", err)
			response.RespondInternalServerError(w, "An unexpected error occurred")
		}

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

func (h *AnalysisHandler) enqueue(w http.ResponseWriter, r *http.Request, id int64, force bool) {
	if h.jobs == nil {
		response.RespondServiceUnavailable(w, service.ErrAsyncDisabled.Error())

		return
	}

	result, err := h.jobs.Enqueue(r.Context(), id, force)
	if err != nil {
		switch {
		case errors.Is(err, huberrors.ErrNotFound):
			response.RespondNotFound(w, "Feedback not found")
		case errors.Is(err, service.ErrAsyncDisabled):
			response.RespondServiceUnavailable(w, err.Error())
		default:
			slog.ErrorContext(r.Context(), "enqueue analysis", "feedback_id", id, "error", err)
			response.RespondInternalServerError(w, "An unexpected error occurred")
		}

		return
	}

	response.RespondJSON(w, http.StatusAccepted, result)
}
