package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/formbricks/feedback-insights/internal/api/response"
	"github.com/formbricks/feedback-insights/internal/api/validation"
	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
)

// FeedbackService defines the interface for feedback business logic.
type FeedbackService interface {
	CreateFeedback(ctx context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error)
	GetFeedback(ctx context.Context, id int64) (*models.FeedbackDetail, error)
	ListFeedback(ctx context.Context, filters *models.ListFeedbackFilters) (*models.ListFeedbackResponse, error)
	SeedFeedback(ctx context.Context) (*models.SeedResponse, error)
}

// FeedbackHandler handles HTTP requests for feedback items
type FeedbackHandler struct {
	service FeedbackService
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(service FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// Create handles POST /api/feedback. Identical content returns the existing item.
func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFeedbackRequest
	if err := validation.DecodeJSONBody(r, &req); err != nil {
		if errors.Is(err, validation.ErrInvalidBody) {
			response.RespondBadRequest(w, "Invalid request body")

			return
		}

		validation.RespondValidationError(w, err)

		return
	}

	feedback, err := h.service.CreateFeedback(r.Context(), &req)
	if err != nil {
		slog.ErrorContext(r.Context(), "create feedback", "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")

		return
	}

	response.RespondJSON(w, http.StatusCreated, feedback)
}

// List handles GET /api/feedback?source=&q=&limit=&offset=
func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListFeedbackFilters{}
	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	result, err := h.service.ListFeedback(r.Context(), filters)
	if err != nil {
		slog.ErrorContext(r.Context(), "list feedback", "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Get handles GET /api/feedback/{id}
func (h *FeedbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		response.RespondBadRequest(w, "Invalid feedback ID")

		return
	}

	detail, err := h.service.GetFeedback(r.Context(), id)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			response.RespondNotFound(w, "Feedback not found")

			return
		}

		slog.ErrorContext(r.Context(), "get feedback", "feedback_id", id, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")

		return
	}

	response.RespondJSON(w, http.StatusOK, detail)
}

// Seed handles POST /api/seed
func (h *FeedbackHandler) Seed(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SeedFeedback(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "seed feedback", "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}
