package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// FeedbackRepository defines the interface for feedback data access.
type FeedbackRepository interface {
	Create(ctx context.Context, req *models.CreateFeedbackRequest, fingerprint string) (*models.Feedback, error)
	InsertSeed(ctx context.Context, item models.SeedFeedback) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.Feedback, error)
	UpdateStatus(ctx context.Context, id int64, status models.AnalysisStatus) error
	List(ctx context.Context, filters *models.ListFeedbackFilters) ([]models.FeedbackListItem, error)
	Count(ctx context.Context, filters *models.ListFeedbackFilters) (int64, error)
}

// AnalysisReader reads a stored analysis row.
type AnalysisReader interface {
	GetByFeedbackID(ctx context.Context, feedbackID int64) (*models.Analysis, error)
}

// FeedbackService handles business logic for feedback items.
type FeedbackService struct {
	repo     FeedbackRepository
	analyses AnalysisReader
}

// NewFeedbackService creates a new feedback service.
func NewFeedbackService(repo FeedbackRepository, analyses AnalysisReader) *FeedbackService {
	return &FeedbackService{repo: repo, analyses: analyses}
}

// CreateFeedback stores a new item in pending state. Identical content returns the existing item.
func (s *FeedbackService) CreateFeedback(ctx context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error) {
	return s.repo.Create(ctx, req, Fingerprint(req.Source, req.Title, req.Body))
}

// GetFeedback returns an item with its analysis, when one exists.
func (s *FeedbackService) GetFeedback(ctx context.Context, id int64) (*models.FeedbackDetail, error) {
	feedback, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.FeedbackDetail{Feedback: feedback}

	analysis, err := s.analyses.GetByFeedbackID(ctx, id)

	switch {
	case err == nil:
		detail.Analysis = analysis
	case errors.Is(err, huberrors.ErrNotFound):
	default:
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	return detail, nil
}

// ListFeedback retrieves items newest first with optional source and text filters.
func (s *FeedbackService) ListFeedback(ctx context.Context, filters *models.ListFeedbackFilters) (*models.ListFeedbackResponse, error) {
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}

	if filters.Limit > maxListLimit {
		filters.Limit = maxListLimit
	}

	if filters.Offset < 0 {
		filters.Offset = 0
	}

	items, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &models.ListFeedbackResponse{
		Data:   items,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}

// SeedFeedback inserts the sample items. Items already present are left alone.
func (s *FeedbackService) SeedFeedback(ctx context.Context) (*models.SeedResponse, error) {
	inserted := 0

	for _, item := range sampleFeedback {
		ok, err := s.repo.InsertSeed(ctx, item)
		if err != nil {
			return nil, err
		}

		if ok {
			inserted++
		}
	}

	slog.InfoContext(ctx, "seeded sample feedback", "inserted", inserted, "total", len(sampleFeedback))

	return &models.SeedResponse{
		Success:  true,
		Inserted: inserted,
		Message:  fmt.Sprintf("Seeded %d sample feedback items", inserted),
	}, nil
}

var sampleFeedback = []models.SeedFeedback{
	{
		Source:      "github",
		Title:       "API response time is too slow",
		Body:        "The /api/users endpoint takes 5+ seconds to respond. This is causing timeouts in our mobile app. We need better performance.",
		Fingerprint: "github-issue-001",
	},
	{
		Source:      "slack",
		Title:       "Love the new dashboard!",
		Body:        "The new dashboard UI is amazing. The real-time updates are exactly what we needed. Great work team!",
		Fingerprint: "slack-msg-002",
	},
	{
		Source:      "email",
		Title:       "Bug in export feature",
		Body:        "When I try to export data to CSV, the file is corrupted and won't open in Excel. This is blocking our quarterly reporting.",
		Fingerprint: "email-ticket-003",
	},
	{
		Source:      "github",
		Title:       "Feature request: Dark mode",
		Body:        "It would be great to have a dark mode option. Working late at night, the bright UI strains my eyes.",
		Fingerprint: "github-issue-004",
	},
	{
		Source:      "intercom",
		Title:       "Cannot reset password",
		Body:        "I've tried resetting my password 3 times but never receive the email. Checked spam folder too. Please help urgently!",
		Fingerprint: "intercom-chat-005",
	},
}
