package models

import "time"

// AnalysisStatus is the current analysis state of a feedback item.
type AnalysisStatus string

// Analysis states. An item starts pending and reflects only the most recent attempt.
const (
	AnalysisStatusPending    AnalysisStatus = "pending"
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// IsValid reports whether s is a known analysis status.
func (s AnalysisStatus) IsValid() bool {
	switch s {
	case AnalysisStatusPending, AnalysisStatusProcessing, AnalysisStatusCompleted, AnalysisStatusFailed:
		return true
	default:
		return false
	}
}

// Feedback represents a single submitted feedback item
type Feedback struct {
	ID             int64          `json:"id"`
	Source         string         `json:"source"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Fingerprint    string         `json:"fingerprint"`
	AnalysisStatus AnalysisStatus `json:"analysis_status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// FeedbackListItem is a feedback row joined with the sentiment of its analysis, if any.
type FeedbackListItem struct {
	Feedback

	SentimentLabel *string `json:"sentiment_label"`
}

// CreateFeedbackRequest represents the request to submit a feedback item
type CreateFeedbackRequest struct {
	Source string `json:"source" validate:"required,min=1,max=255,no_null_bytes"`
	Title  string `json:"title" validate:"required,min=1,max=500,no_null_bytes"`
	Body   string `json:"body" validate:"required,min=1,max=20000,no_null_bytes"`
}

// ListFeedbackFilters represents filters for listing feedback
type ListFeedbackFilters struct {
	Source *string `form:"source" validate:"omitempty,no_null_bytes"`
	Query  *string `form:"q" validate:"omitempty,no_null_bytes"`
	Limit  int     `form:"limit" validate:"omitempty,min=1,max=100"`
	Offset int     `form:"offset" validate:"omitempty,min=0,max=2147483647"`
}

// ListFeedbackResponse represents the response for listing feedback
type ListFeedbackResponse struct {
	Data   []FeedbackListItem `json:"data"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// FeedbackDetail is a feedback item with its stored analysis row, when one exists.
type FeedbackDetail struct {
	Feedback *Feedback `json:"feedback"`
	Analysis *Analysis `json:"analysis,omitempty"`
}

// SeedFeedback is a sample item inserted by the seed operation under a fixed fingerprint.
type SeedFeedback struct {
	Source      string
	Title       string
	Body        string
	Fingerprint string
}

// SeedResponse represents the response of the seed operation
type SeedResponse struct {
	Success  bool   `json:"success"`
	Inserted int    `json:"inserted"`
	Message  string `json:"message"`
}
