// Package repository provides Postgres data access for feedback, analyses, digests and cache entries.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
)

const feedbackColumns = "id, source, title, body, fingerprint, analysis_status, created_at"

// FeedbackRepository handles data access for feedback items.
type FeedbackRepository struct {
	db *pgxpool.Pool
}

// NewFeedbackRepository creates a new feedback repository.
func NewFeedbackRepository(db *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func scanFeedback(row pgx.Row, f *models.Feedback) error {
	return row.Scan(&f.ID, &f.Source, &f.Title, &f.Body, &f.Fingerprint, &f.AnalysisStatus, &f.CreatedAt)
}

// Create inserts a feedback item keyed by fingerprint.
// When the fingerprint already exists the stored row is returned unchanged.
func (r *FeedbackRepository) Create(ctx context.Context, req *models.CreateFeedbackRequest, fingerprint string) (*models.Feedback, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO feedback (source, title, body, fingerprint, analysis_status)
		VALUES ($1, $2, $3, $4, 'pending')
		ON CONFLICT (fingerprint) DO UPDATE SET fingerprint = feedback.fingerprint
		RETURNING ` + feedbackColumns

	var f models.Feedback
	if err := scanFeedback(r.db.QueryRow(ctx, query, req.Source, req.Title, req.Body, fingerprint), &f); err != nil {
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}

	return &f, nil
}

// InsertSeed inserts a sample item and reports whether a row was actually written.
func (r *FeedbackRepository) InsertSeed(ctx context.Context, item models.SeedFeedback) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO feedback (source, title, body, fingerprint, analysis_status)
		VALUES ($1, $2, $3, $4, 'pending')
		ON CONFLICT (fingerprint) DO NOTHING`,
		item.Source, item.Title, item.Body, item.Fingerprint,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert seed feedback: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetByID retrieves a single feedback item by ID.
func (r *FeedbackRepository) GetByID(ctx context.Context, id int64) (*models.Feedback, error) {
	var f models.Feedback

	err := scanFeedback(r.db.QueryRow(ctx, "SELECT "+feedbackColumns+" FROM feedback WHERE id = $1", id), &f)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("feedback", "Feedback not found")
		}

		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}

	return &f, nil
}

// UpdateStatus sets the analysis status of a feedback item.
func (r *FeedbackRepository) UpdateStatus(ctx context.Context, id int64, status models.AnalysisStatus) error {
	tag, err := r.db.Exec(ctx, "UPDATE feedback SET analysis_status = $2 WHERE id = $1", id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update analysis status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("feedback", "Feedback not found")
	}

	return nil
}

// ListIDsByStatus returns up to limit feedback ids in the given status, oldest first.
func (r *FeedbackRepository) ListIDsByStatus(ctx context.Context, status models.AnalysisStatus, limit int) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		"SELECT id FROM feedback WHERE analysis_status = $1 ORDER BY id LIMIT $2",
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan feedback ids: %w", err)
	}

	return ids, nil
}

// buildFilterConditions builds WHERE clause conditions and arguments from filters.
// Returns the WHERE clause (including " WHERE " prefix if conditions exist) and the args slice.
func buildFilterConditions(filters *models.ListFeedbackFilters) (whereClause string, args []any) {
	var conditions []string

	argCount := 1

	if filters.Source != nil {
		conditions = append(conditions, fmt.Sprintf("f.source = $%d", argCount))
		args = append(args, *filters.Source)
		argCount++
	}

	if filters.Query != nil && *filters.Query != "" {
		conditions = append(conditions, fmt.Sprintf("(f.title ILIKE $%d OR f.body ILIKE $%d)", argCount, argCount))
		args = append(args, "%"+*filters.Query+"%")
	}

	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	return whereClause, args
}

// buildListQuery returns the paginated list query and its arguments.
func buildListQuery(filters *models.ListFeedbackFilters) (string, []any) {
	query := `
		SELECT f.id, f.source, f.title, f.body, f.fingerprint, f.analysis_status, f.created_at, a.sentiment_label
		FROM feedback f
		LEFT JOIN analysis a ON a.feedback_id = f.id`

	whereClause, args := buildFilterConditions(filters)
	query += whereClause
	argCount := len(args) + 1

	query += " ORDER BY f.created_at DESC, f.id DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)

		args = append(args, filters.Limit)
		argCount++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)

		args = append(args, filters.Offset)
	}

	return query, args
}

// List retrieves feedback items with optional filters, newest first.
func (r *FeedbackRepository) List(ctx context.Context, filters *models.ListFeedbackFilters) ([]models.FeedbackListItem, error) {
	query, args := buildListQuery(filters)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	items := []models.FeedbackListItem{} // Initialize as empty slice, not nil

	for rows.Next() {
		var item models.FeedbackListItem

		err := rows.Scan(
			&item.ID, &item.Source, &item.Title, &item.Body, &item.Fingerprint,
			&item.AnalysisStatus, &item.CreatedAt, &item.SentimentLabel,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback: %w", err)
	}

	return items, nil
}

// Count returns the number of feedback items matching the filters.
func (r *FeedbackRepository) Count(ctx context.Context, filters *models.ListFeedbackFilters) (int64, error) {
	whereClause, args := buildFilterConditions(filters)

	var count int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM feedback f"+whereClause, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}

	return count, nil
}
