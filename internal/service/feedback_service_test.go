package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
)

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "88810472077aafda", Fingerprint("github", "Slow API", "It takes 5 seconds"))
	assert.Equal(t, "d54855796b952554", Fingerprint("email", "Bug", "CSV broke"))
	assert.Len(t, Fingerprint("", "", ""), 16)
	assert.NotEqual(t, Fingerprint("a", "b:c", "d"), Fingerprint("a", "b", "c:d:x"))
}

func TestFeedbackService_CreateDeduplicates(t *testing.T) {
	repo := newMockFeedbackRepo()
	svc := NewFeedbackService(repo, newMockAnalysisRepo())
	req := &models.CreateFeedbackRequest{Source: "github", Title: "Slow API", Body: "It takes 5 seconds"}

	first, err := svc.CreateFeedback(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "88810472077aafda", first.Fingerprint)
	assert.Equal(t, models.AnalysisStatusPending, first.AnalysisStatus)

	second, err := svc.CreateFeedback(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.items, 1)
}

// listRecorder captures the filters the service hands to the repository.
type listRecorder struct {
	*mockFeedbackRepo

	got *models.ListFeedbackFilters
}

func (r *listRecorder) List(ctx context.Context, filters *models.ListFeedbackFilters) ([]models.FeedbackListItem, error) {
	r.got = filters

	return r.mockFeedbackRepo.List(ctx, filters)
}

func TestFeedbackService_ListNormalizesPaging(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", 0, 0, 20, 0},
		{"explicit", 5, 10, 5, 10},
		{"clamped", 500, 0, 100, 0},
		{"negative offset", 10, -3, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &listRecorder{mockFeedbackRepo: newMockFeedbackRepo(&models.Feedback{ID: 1})}
			svc := NewFeedbackService(repo, newMockAnalysisRepo())

			resp, err := svc.ListFeedback(context.Background(), &models.ListFeedbackFilters{Limit: tt.limit, Offset: tt.offset})

			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, resp.Limit)
			assert.Equal(t, tt.wantOffset, resp.Offset)
			assert.Equal(t, tt.wantLimit, repo.got.Limit)
			assert.Equal(t, int64(1), resp.Total)
			assert.Len(t, resp.Data, 1)
		})
	}
}

func TestFeedbackService_GetFeedback(t *testing.T) {
	repo := newMockFeedbackRepo(&models.Feedback{ID: 1, Title: "a"}, &models.Feedback{ID: 2, Title: "b"})
	analyses := newMockAnalysisRepo()
	msg := "timeout"
	analyses.rows[2] = &models.Analysis{FeedbackID: 2, Error: &msg}
	svc := NewFeedbackService(repo, analyses)

	t.Run("without analysis", func(t *testing.T) {
		got, err := svc.GetFeedback(context.Background(), 1)

		require.NoError(t, err)
		assert.Equal(t, "a", got.Feedback.Title)
		assert.Nil(t, got.Analysis)
	})

	t.Run("with analysis", func(t *testing.T) {
		got, err := svc.GetFeedback(context.Background(), 2)

		require.NoError(t, err)
		require.NotNil(t, got.Analysis)
		assert.Equal(t, "timeout", *got.Analysis.Error)
	})

	t.Run("missing item", func(t *testing.T) {
		_, err := svc.GetFeedback(context.Background(), 3)

		require.ErrorIs(t, err, huberrors.ErrNotFound)
	})
}

type failingAnalysisReader struct{}

func (failingAnalysisReader) GetByFeedbackID(context.Context, int64) (*models.Analysis, error) {
	return nil, errors.New("connection reset")
}

func TestFeedbackService_GetFeedbackAnalysisError(t *testing.T) {
	svc := NewFeedbackService(newMockFeedbackRepo(&models.Feedback{ID: 1}), failingAnalysisReader{})

	_, err := svc.GetFeedback(context.Background(), 1)

	require.Error(t, err)
	assert.NotErrorIs(t, err, huberrors.ErrNotFound)
}

func TestFeedbackService_SeedIsIdempotent(t *testing.T) {
	repo := newMockFeedbackRepo()
	svc := NewFeedbackService(repo, newMockAnalysisRepo())

	first, err := svc.SeedFeedback(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, 5, first.Inserted)
	assert.Equal(t, "Seeded 5 sample feedback items", first.Message)

	second, err := svc.SeedFeedback(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, "Seeded 0 sample feedback items", second.Message)
	assert.Len(t, repo.items, 5)
}
