package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
)

// AnalysisRepository handles data access for analysis rows (one per feedback item).
type AnalysisRepository struct {
	db *pgxpool.Pool
}

// NewAnalysisRepository creates a new analysis repository.
func NewAnalysisRepository(db *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// GetByFeedbackID retrieves the analysis row of a feedback item.
func (r *AnalysisRepository) GetByFeedbackID(ctx context.Context, feedbackID int64) (*models.Analysis, error) {
	query := `
		SELECT id, feedback_id, sentiment_label, sentiment_confidence, urgency_score, urgency_reason,
			themes_json, summary, next_action, model, error, updated_at
		FROM analysis
		WHERE feedback_id = $1
	`

	var (
		a     models.Analysis
		label *string
	)

	err := r.db.QueryRow(ctx, query, feedbackID).Scan(
		&a.ID, &a.FeedbackID, &label, &a.SentimentConfidence, &a.UrgencyScore, &a.UrgencyReason,
		&a.ThemesJSON, &a.Summary, &a.NextAction, &a.Model, &a.Error, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("analysis", "analysis not found")
		}

		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	if label != nil {
		l := models.SentimentLabel(*label)
		a.SentimentLabel = &l
	}

	return &a, nil
}

// UpsertResult writes a successful analysis, overwriting any prior row for the item.
// A previous error message is cleared.
func (r *AnalysisRepository) UpsertResult(ctx context.Context, feedbackID int64, result *models.AIAnalysis, model string) error {
	themes, err := json.Marshal(result.Themes)
	if err != nil {
		return fmt.Errorf("failed to encode themes: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO analysis (
			feedback_id, sentiment_label, sentiment_confidence,
			urgency_score, urgency_reason, themes_json,
			summary, next_action, model, error, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, now())
		ON CONFLICT (feedback_id) DO UPDATE SET
			sentiment_label = EXCLUDED.sentiment_label,
			sentiment_confidence = EXCLUDED.sentiment_confidence,
			urgency_score = EXCLUDED.urgency_score,
			urgency_reason = EXCLUDED.urgency_reason,
			themes_json = EXCLUDED.themes_json,
			summary = EXCLUDED.summary,
			next_action = EXCLUDED.next_action,
			model = EXCLUDED.model,
			error = NULL,
			updated_at = now()`,
		feedbackID,
		string(result.Sentiment.Label),
		result.Sentiment.Confidence,
		result.Urgency.Score,
		result.Urgency.Reason,
		string(themes),
		result.Summary,
		result.NextAction,
		model,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert analysis: %w", err)
	}

	return nil
}

// UpsertError records a failed attempt. Only error and updated_at are written, so structured
// fields from an earlier successful run stay intact.
func (r *AnalysisRepository) UpsertError(ctx context.Context, feedbackID int64, message string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO analysis (feedback_id, error, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (feedback_id) DO UPDATE SET error = EXCLUDED.error, updated_at = now()`,
		feedbackID, message,
	)
	if err != nil {
		return fmt.Errorf("failed to record analysis error: %w", err)
	}

	return nil
}

// GetCompletedThemesJSON returns the stored themes of a completed analysis.
// Items without a completed analysis or without themes yield a NotAnalyzedError.
func (r *AnalysisRepository) GetCompletedThemesJSON(ctx context.Context, feedbackID int64) (string, error) {
	var themes string

	err := r.db.QueryRow(ctx, `
		SELECT a.themes_json
		FROM analysis a
		JOIN feedback f ON f.id = a.feedback_id
		WHERE a.feedback_id = $1 AND f.analysis_status = 'completed' AND a.themes_json IS NOT NULL`,
		feedbackID,
	).Scan(&themes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", &huberrors.NotAnalyzedError{FeedbackID: feedbackID}
		}

		return "", fmt.Errorf("failed to get source themes: %w", err)
	}

	return themes, nil
}

// ListSimilarityCandidates returns up to limit other completed analyses with their feedback,
// ordered by feedback id.
func (r *AnalysisRepository) ListSimilarityCandidates(ctx context.Context, excludeID int64, limit int) ([]models.SimilarityCandidate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT f.id, f.source, f.title, f.body, f.fingerprint, f.analysis_status, f.created_at, a.themes_json
		FROM analysis a
		JOIN feedback f ON f.id = a.feedback_id
		WHERE a.feedback_id <> $1 AND f.analysis_status = 'completed' AND a.themes_json IS NOT NULL
		ORDER BY a.feedback_id
		LIMIT $2`,
		excludeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list similarity candidates: %w", err)
	}
	defer rows.Close()

	candidates := []models.SimilarityCandidate{}

	for rows.Next() {
		var c models.SimilarityCandidate

		f := &c.Feedback
		if err := rows.Scan(&f.ID, &f.Source, &f.Title, &f.Body, &f.Fingerprint, &f.AnalysisStatus, &f.CreatedAt, &c.ThemesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan similarity candidate: %w", err)
		}

		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating similarity candidates: %w", err)
	}

	return candidates, nil
}
