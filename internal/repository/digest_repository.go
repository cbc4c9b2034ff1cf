package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formbricks/feedback-insights/internal/models"
)

// DigestRepository runs the windowed aggregates behind the digest report.
// Every query filters on feedback.created_at >= since.
type DigestRepository struct {
	db *pgxpool.Pool
}

// NewDigestRepository creates a new digest repository.
func NewDigestRepository(db *pgxpool.Pool) *DigestRepository {
	return &DigestRepository{db: db}
}

// CountFeedbackSince returns the number of feedback items created at or after since.
func (r *DigestRepository) CountFeedbackSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM feedback WHERE created_at >= $1", since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}

	return count, nil
}

// SentimentCountsSince returns analysis counts grouped by sentiment label.
func (r *DigestRepository) SentimentCountsSince(ctx context.Context, since time.Time) (map[models.SentimentLabel]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.sentiment_label, COUNT(*)
		FROM analysis a
		JOIN feedback f ON f.id = a.feedback_id
		WHERE f.created_at >= $1 AND a.sentiment_label IS NOT NULL
		GROUP BY a.sentiment_label`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count sentiments: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.SentimentLabel]int64)

	for rows.Next() {
		var (
			label string
			count int64
		)

		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment count: %w", err)
		}

		counts[models.SentimentLabel(label)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sentiment counts: %w", err)
	}

	return counts, nil
}

// AverageUrgencySince returns the mean urgency score, or nil when no scored analysis exists.
func (r *DigestRepository) AverageUrgencySince(ctx context.Context, since time.Time) (*float64, error) {
	var avg *float64

	err := r.db.QueryRow(ctx, `
		SELECT AVG(a.urgency_score)::float8
		FROM analysis a
		JOIN feedback f ON f.id = a.feedback_id
		WHERE f.created_at >= $1 AND a.urgency_score IS NOT NULL`,
		since,
	).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("failed to average urgency: %w", err)
	}

	return avg, nil
}

// ThemesJSONSince returns the raw themes_json of every analysis in the window.
func (r *DigestRepository) ThemesJSONSince(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.themes_json
		FROM analysis a
		JOIN feedback f ON f.id = a.feedback_id
		WHERE f.created_at >= $1 AND a.themes_json IS NOT NULL
		ORDER BY f.created_at, f.id`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}

	themes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan themes: %w", err)
	}

	return themes, nil
}

// SourceCountsSince returns feedback counts grouped by source, most frequent first.
func (r *DigestRepository) SourceCountsSince(ctx context.Context, since time.Time) ([]models.SourceCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT source, COUNT(*)
		FROM feedback
		WHERE created_at >= $1
		GROUP BY source
		ORDER BY COUNT(*) DESC, source`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count sources: %w", err)
	}

	sources, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SourceCount, error) {
		var sc models.SourceCount
		err := row.Scan(&sc.Source, &sc.Count)

		return sc, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan source counts: %w", err)
	}

	return sources, nil
}
