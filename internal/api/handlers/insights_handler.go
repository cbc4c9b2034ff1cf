package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/formbricks/feedback-insights/internal/api/response"
	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
)

// maxSimilarLimit matches the candidate pool scored per lookup.
const maxSimilarLimit = 50

// DigestProvider computes windowed digest reports.
type DigestProvider interface {
	Digest(ctx context.Context, window models.DigestWindow) (*models.DigestReport, error)
}

// SimilarityFinder ranks analyzed items by similarity to a source item.
type SimilarityFinder interface {
	FindSimilar(ctx context.Context, sourceID int64, limit int) (*models.SimilarResponse, error)
}

// InsightsHandler serves the read-side views over completed analyses.
type InsightsHandler struct {
	digests    DigestProvider
	similarity SimilarityFinder
}

// NewInsightsHandler creates an InsightsHandler.
func NewInsightsHandler(digests DigestProvider, similarity SimilarityFinder) *InsightsHandler {
	return &InsightsHandler{digests: digests, similarity: similarity}
}

// Digest handles GET /api/digest?window=24h|7d (default 24h).
func (h *InsightsHandler) Digest(w http.ResponseWriter, r *http.Request) {
	window, err := models.ParseDigestWindow(r.URL.Query().Get("window"))
	if err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	report, err := h.digests.Digest(r.Context(), window)
	if err != nil {
		slog.ErrorContext(r.Context(), "compute digest", "window", window, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")

		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

// Similar handles GET /api/similar/{id}?limit=N (default 10, at most 50).
func (h *InsightsHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		response.RespondBadRequest(w, "Invalid feedback ID")

		return
	}

	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSimilarLimit {
			response.RespondBadRequest(w, "Invalid limit parameter")

			return
		}

		limit = n
	}

	result, err := h.similarity.FindSimilar(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotAnalyzed) || errors.Is(err, huberrors.ErrNotFound) {
			response.RespondNotFound(w, "Feedback not found or not analyzed")

			return
		}

		slog.ErrorContext(r.Context(), "find similar", "feedback_id", id, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}
