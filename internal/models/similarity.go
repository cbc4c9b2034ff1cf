package models

// SimilarityMatch is the score and matching evidence between two theme collections.
type SimilarityMatch struct {
	Score          float64
	MatchingThemes []string
}

// SimilarityCandidate is a completed analysis considered when ranking similar items.
// ThemesJSON is the raw stored theme column and may be malformed.
type SimilarityCandidate struct {
	Feedback   Feedback
	ThemesJSON string
}

// SimilarityResult is one ranked similar item. The candidate's feedback fields are inlined.
type SimilarityResult struct {
	Feedback

	FeedbackID      int64    `json:"feedback_id"`
	SimilarityScore float64  `json:"similarity_score"`
	MatchingThemes  []string `json:"matching_themes"`
}

// SimilarResponse represents the response of a similarity lookup
type SimilarResponse struct {
	Similar []SimilarityResult `json:"similar"`
}
