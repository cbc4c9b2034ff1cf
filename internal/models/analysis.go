package models

import "time"

// SentimentLabel is the sentiment class produced by the analysis.
type SentimentLabel string

// Sentiment labels accepted from the inference engine.
const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// Sentiment is the sentiment label with the model's confidence in [0,1].
type Sentiment struct {
	Label      SentimentLabel `json:"label"`
	Confidence float64        `json:"confidence"`
}

// Urgency is an integer score in [0,100] with a free-text reason.
type Urgency struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// Theme is a short topic label extracted from a feedback item with supporting evidence.
type Theme struct {
	Theme         string `json:"theme"`
	ImpactArea    string `json:"impact_area"`
	EvidenceQuote string `json:"evidence_quote"`
}

// AIAnalysis is the validated structured output of the inference engine.
// It is what Analyze returns and what is cached under analysis:<id>.
type AIAnalysis struct {
	Sentiment  Sentiment `json:"sentiment"`
	Urgency    Urgency   `json:"urgency"`
	Themes     []Theme   `json:"themes"`
	Summary    string    `json:"summary"`
	NextAction string    `json:"next_action"`
}

// Analysis is the persisted analysis row of a feedback item (at most one per item).
// Structured fields are nil until the first successful run; Error is set by failed runs.
type Analysis struct {
	ID                  int64           `json:"id"`
	FeedbackID          int64           `json:"feedback_id"`
	SentimentLabel      *SentimentLabel `json:"sentiment_label,omitempty"`
	SentimentConfidence *float64        `json:"sentiment_confidence,omitempty"`
	UrgencyScore        *int            `json:"urgency_score,omitempty"`
	UrgencyReason       *string         `json:"urgency_reason,omitempty"`
	ThemesJSON          *string         `json:"themes_json,omitempty"`
	Summary             *string         `json:"summary,omitempty"`
	NextAction          *string         `json:"next_action,omitempty"`
	Model               *string         `json:"model,omitempty"`
	Error               *string         `json:"error,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
