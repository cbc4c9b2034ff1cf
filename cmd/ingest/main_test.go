package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/feedback-insights/internal/models"
	"github.com/formbricks/feedback-insights/internal/service"
)

func TestReadFeedbackCSV(t *testing.T) {
	input := "Body,ignored,Source,Title\n" +
		"It takes 5 seconds,x,github,Slow API\n" +
		",x,email,Missing body\n" +
		"CSV broke, x ,email,Bug\n"

	items, skipped, err := readFeedbackCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 1, skipped)
	require.Len(t, items, 2)
	assert.Equal(t, models.CreateFeedbackRequest{Source: "github", Title: "Slow API", Body: "It takes 5 seconds"}, items[0])
	assert.Equal(t, models.CreateFeedbackRequest{Source: "email", Title: "Bug", Body: "CSV broke"}, items[1])
}

func TestReadFeedbackCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty file", input: "", want: "CSV file is empty"},
		{name: "missing column", input: "source,title\na,b\n", want: `missing required column "body"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := readFeedbackCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

type mockFeedbackAPI struct {
	created  []models.CreateFeedbackRequest
	enqueued []int64
	failOn   string
	status   models.AnalysisStatus
}

func (m *mockFeedbackAPI) CreateFeedback(_ context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error) {
	if req.Title == m.failOn {
		return nil, errors.New("boom")
	}

	m.created = append(m.created, *req)

	return &models.Feedback{ID: int64(len(m.created)), AnalysisStatus: m.status}, nil
}

func (m *mockFeedbackAPI) EnqueueAnalysis(_ context.Context, id int64, _ bool) (*service.EnqueueResult, error) {
	m.enqueued = append(m.enqueued, id)

	return &service.EnqueueResult{FeedbackID: id}, nil
}

func TestIngest(t *testing.T) {
	items := []models.CreateFeedbackRequest{
		{Source: "github", Title: "one", Body: "a"},
		{Source: "github", Title: "bad", Body: "b"},
		{Source: "github", Title: "three", Body: "c"},
	}

	t.Run("counts successes and failures and enqueues pending items", func(t *testing.T) {
		api := &mockFeedbackAPI{failOn: "bad", status: models.AnalysisStatusPending}
		stats := Stats{}

		ingest(context.Background(), api, Config{Analyze: true}, items, &stats)

		assert.Equal(t, 2, stats.SuccessfulPosts)
		assert.Equal(t, 1, stats.FailedPosts)
		assert.Equal(t, 2, stats.Enqueued)
		assert.Equal(t, []int64{1, 2}, api.enqueued)
	})

	t.Run("already analyzed duplicates are not enqueued", func(t *testing.T) {
		api := &mockFeedbackAPI{status: models.AnalysisStatusCompleted}
		stats := Stats{}

		ingest(context.Background(), api, Config{Analyze: true}, items, &stats)

		assert.Equal(t, 3, stats.SuccessfulPosts)
		assert.Zero(t, stats.Enqueued)
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		api := &mockFeedbackAPI{}
		stats := Stats{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		ingest(ctx, api, Config{}, items, &stats)

		assert.Empty(t, api.created)
	})
}
