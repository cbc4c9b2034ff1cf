package models

import "fmt"

// DigestWindow is the lookback window of a digest report.
type DigestWindow string

// Supported digest windows.
const (
	DigestWindow24h DigestWindow = "24h"
	DigestWindow7d  DigestWindow = "7d"
)

// ParseDigestWindow parses a window string. The empty string defaults to 24h.
func ParseDigestWindow(s string) (DigestWindow, error) {
	switch DigestWindow(s) {
	case "", DigestWindow24h:
		return DigestWindow24h, nil
	case DigestWindow7d:
		return DigestWindow7d, nil
	default:
		return "", fmt.Errorf("invalid digest window %q: must be one of 24h, 7d", s)
	}
}

// Hours returns the lookback of the window in hours.
func (w DigestWindow) Hours() int {
	if w == DigestWindow7d {
		return 7 * 24
	}

	return 24
}

// SentimentBreakdown counts analyzed items per sentiment label.
type SentimentBreakdown struct {
	Positive int64 `json:"positive"`
	Neutral  int64 `json:"neutral"`
	Negative int64 `json:"negative"`
}

// ThemeCount is the number of analyzed items in a window mentioning a theme.
type ThemeCount struct {
	Theme string `json:"theme"`
	Count int64  `json:"count"`
}

// SourceCount is the number of feedback items in a window from a source.
type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// DigestReport is the windowed aggregate over analyzed feedback.
type DigestReport struct {
	Window             DigestWindow       `json:"window"`
	TotalFeedback      int64              `json:"total_feedback"`
	SentimentBreakdown SentimentBreakdown `json:"sentiment_breakdown"`
	AvgUrgency         int                `json:"avg_urgency"`
	TopThemes          []ThemeCount       `json:"top_themes"`
	Sources            []SourceCount      `json:"sources"`
}
