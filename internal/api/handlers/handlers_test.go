package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
	"github.com/formbricks/feedback-insights/internal/service"
)

// mockFeedbackService mocks FeedbackService for handler tests.
type mockFeedbackService struct {
	createFunc func(ctx context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error)
	getFunc    func(ctx context.Context, id int64) (*models.FeedbackDetail, error)
	listFunc   func(ctx context.Context, filters *models.ListFeedbackFilters) (*models.ListFeedbackResponse, error)
}

func (m *mockFeedbackService) CreateFeedback(ctx context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}

	return &models.Feedback{ID: 1}, nil
}

func (m *mockFeedbackService) GetFeedback(ctx context.Context, id int64) (*models.FeedbackDetail, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}

	return nil, huberrors.NewNotFoundError("feedback", "Feedback not found")
}

func (m *mockFeedbackService) ListFeedback(ctx context.Context, filters *models.ListFeedbackFilters) (*models.ListFeedbackResponse, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filters)
	}

	return &models.ListFeedbackResponse{Data: []models.FeedbackListItem{}}, nil
}

func (m *mockFeedbackService) SeedFeedback(context.Context) (*models.SeedResponse, error) {
	return &models.SeedResponse{Success: true, Inserted: 5, Message: "Seeded 5 sample feedback items"}, nil
}

func TestFeedbackHandler_Create(t *testing.T) {
	t.Run("valid body returns 201", func(t *testing.T) {
		var got *models.CreateFeedbackRequest

		h := NewFeedbackHandler(&mockFeedbackService{
			createFunc: func(_ context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error) {
				got = req

				return &models.Feedback{ID: 7, Source: req.Source, Fingerprint: "88810472077aafda"}, nil
			},
		})

		body := `{"source":"github","title":"Slow API","body":"It takes 5 seconds"}`
		req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(body))
		rec := httptest.NewRecorder()

		h.Create(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, "Slow API", got.Title)

		var resp models.Feedback
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(7), resp.ID)
	})

	t.Run("malformed json returns 400", func(t *testing.T) {
		h := NewFeedbackHandler(&mockFeedbackService{})
		rec := httptest.NewRecorder()

		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader("{")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid request body")
	})

	t.Run("missing field returns validation problem", func(t *testing.T) {
		h := NewFeedbackHandler(&mockFeedbackService{})
		rec := httptest.NewRecorder()

		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{"source":"x","title":"y"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Validation Error")
		assert.Contains(t, rec.Body.String(), "body is required")
	})
}

func TestFeedbackHandler_List(t *testing.T) {
	t.Run("passes filters", func(t *testing.T) {
		var got *models.ListFeedbackFilters

		h := NewFeedbackHandler(&mockFeedbackService{
			listFunc: func(_ context.Context, filters *models.ListFeedbackFilters) (*models.ListFeedbackResponse, error) {
				got = filters

				return &models.ListFeedbackResponse{Data: []models.FeedbackListItem{}, Limit: 20}, nil
			},
		})
		rec := httptest.NewRecorder()

		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/feedback?source=slack&q=export", http.NoBody))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, "slack", *got.Source)
		assert.Equal(t, "export", *got.Query)
		assert.JSONEq(t, `{"data":[],"total":0,"limit":20,"offset":0}`, rec.Body.String())
	})

	t.Run("limit out of range returns 400", func(t *testing.T) {
		h := NewFeedbackHandler(&mockFeedbackService{})
		rec := httptest.NewRecorder()

		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/feedback?limit=0", http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code, "zero means default")

		rec = httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/feedback?limit=1000", http.NoBody))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFeedbackHandler_Get(t *testing.T) {
	h := NewFeedbackHandler(&mockFeedbackService{
		getFunc: func(_ context.Context, id int64) (*models.FeedbackDetail, error) {
			if id != 3 {
				return nil, huberrors.NewNotFoundError("feedback", "Feedback not found")
			}

			return &models.FeedbackDetail{Feedback: &models.Feedback{ID: 3}}, nil
		},
	})

	tests := []struct {
		name string
		id   string
		code int
	}{
		{"found", "3", http.StatusOK},
		{"missing", "4", http.StatusNotFound},
		{"not a number", "abc", http.StatusBadRequest},
		{"zero", "0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/feedback/"+tt.id, http.NoBody)
			req.SetPathValue("id", tt.id)
			rec := httptest.NewRecorder()

			h.Get(rec, req)

			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestFeedbackHandler_Seed(t *testing.T) {
	rec := httptest.NewRecorder()

	NewFeedbackHandler(&mockFeedbackService{}).Seed(rec, httptest.NewRequest(http.MethodPost, "/api/seed", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"inserted":5,"message":"Seeded 5 sample feedback items"}`, rec.Body.String())
}

type mockAnalyzer struct {
	analyzeFunc func(ctx context.Context, id int64, force bool) (*models.AIAnalysis, error)
}

func (m *mockAnalyzer) Analyze(ctx context.Context, id int64, force bool) (*models.AIAnalysis, error) {
	return m.analyzeFunc(ctx, id, force)
}

type mockEnqueuer struct {
	err error
}

func (m *mockEnqueuer) Enqueue(_ context.Context, id int64, _ bool) (*service.EnqueueResult, error) {
	if m.err != nil {
		return nil, m.err
	}

	return &service.EnqueueResult{FeedbackID: id, JobID: 99}, nil
}

func analyzeRequest(id, query string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/"+id+query, http.NoBody)
	req.SetPathValue("id", id)

	return req
}

func TestAnalysisHandler_Analyze(t *testing.T) {
	t.Run("force flag values", func(t *testing.T) {
		for query, want := range map[string]bool{"": false, "?force=true": true, "?force=1": true, "?force=yes": false} {
			var gotForce bool

			h := NewAnalysisHandler(&mockAnalyzer{analyzeFunc: func(_ context.Context, _ int64, force bool) (*models.AIAnalysis, error) {
				gotForce = force

				return &models.AIAnalysis{Summary: "ok"}, nil
			}}, nil)
			rec := httptest.NewRecorder()

			h.Analyze(rec, analyzeRequest("1", query))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, want, gotForce, "query %q", query)
		}
	})

	t.Run("not found", func(t *testing.T) {
		h := NewAnalysisHandler(&mockAnalyzer{analyzeFunc: func(context.Context, int64, bool) (*models.AIAnalysis, error) {
			return nil, huberrors.NewNotFoundError("feedback", "Feedback not found")
		}}, nil)
		rec := httptest.NewRecorder()

		h.Analyze(rec, analyzeRequest("5", ""))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Feedback not found")
	})

	t.Run("failed analysis body", func(t *testing.T) {
		h := NewAnalysisHandler(&mockAnalyzer{analyzeFunc: func(_ context.Context, id int64, _ bool) (*models.AIAnalysis, error) {
			return nil, huberrors.NewAnalysisFailedError(id, "inference output failed schema validation")
		}}, nil)
		rec := httptest.NewRecorder()

		h.Analyze(rec, analyzeRequest("5", ""))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t,
			`{"error":"Analysis failed","message":"inference output failed schema validation","feedback_id":5}`,
			rec.Body.String())
	})

	t.Run("unexpected error", func(t *testing.T) {
		h := NewAnalysisHandler(&mockAnalyzer{analyzeFunc: func(context.Context, int64, bool) (*models.AIAnalysis, error) {
			return nil, errors.New("db down")
		}}, nil)
		rec := httptest.NewRecorder()

		h.Analyze(rec, analyzeRequest("5", ""))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db down")
	})
}

func TestAnalysisHandler_Async(t *testing.T) {
	analyzer := &mockAnalyzer{analyzeFunc: func(context.Context, int64, bool) (*models.AIAnalysis, error) {
		t.Fatal("synchronous analysis must not run for async requests")

		return nil, nil
	}}

	t.Run("enqueued", func(t *testing.T) {
		rec := httptest.NewRecorder()

		NewAnalysisHandler(analyzer, &mockEnqueuer{}).Analyze(rec, analyzeRequest("8", "?async=true"))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"feedback_id":8,"job_id":99,"duplicate":false}`, rec.Body.String())
	})

	t.Run("disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()

		NewAnalysisHandler(analyzer, nil).Analyze(rec, analyzeRequest("8", "?async=1"))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("disabled queue behind interface", func(t *testing.T) {
		rec := httptest.NewRecorder()

		NewAnalysisHandler(analyzer, &mockEnqueuer{err: service.ErrAsyncDisabled}).Analyze(rec, analyzeRequest("8", "?async=1"))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("missing item", func(t *testing.T) {
		rec := httptest.NewRecorder()
		enq := &mockEnqueuer{err: huberrors.NewNotFoundError("feedback", "Feedback not found")}

		NewAnalysisHandler(analyzer, enq).Analyze(rec, analyzeRequest("8", "?async=true"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type mockDigests struct {
	got models.DigestWindow
}

func (m *mockDigests) Digest(_ context.Context, window models.DigestWindow) (*models.DigestReport, error) {
	m.got = window

	return &models.DigestReport{Window: window, TopThemes: []models.ThemeCount{}, Sources: []models.SourceCount{}}, nil
}

type mockSimilarity struct {
	gotLimit int
	err      error
}

func (m *mockSimilarity) FindSimilar(_ context.Context, _ int64, limit int) (*models.SimilarResponse, error) {
	m.gotLimit = limit
	if m.err != nil {
		return nil, m.err
	}

	return &models.SimilarResponse{Similar: []models.SimilarityResult{}}, nil
}

func TestInsightsHandler_Digest(t *testing.T) {
	tests := []struct {
		query string
		code  int
		want  models.DigestWindow
	}{
		{"", http.StatusOK, models.DigestWindow24h},
		{"?window=24h", http.StatusOK, models.DigestWindow24h},
		{"?window=7d", http.StatusOK, models.DigestWindow7d},
		{"?window=30d", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			digests := &mockDigests{}
			rec := httptest.NewRecorder()

			NewInsightsHandler(digests, &mockSimilarity{}).Digest(rec, httptest.NewRequest(http.MethodGet, "/api/digest"+tt.query, http.NoBody))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.want, digests.got)
		})
	}
}

func TestInsightsHandler_Similar(t *testing.T) {
	similarRequest := func(id, query string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/similar/"+id+query, http.NoBody)
		req.SetPathValue("id", id)

		return req
	}

	t.Run("default limit", func(t *testing.T) {
		sim := &mockSimilarity{}
		rec := httptest.NewRecorder()

		NewInsightsHandler(&mockDigests{}, sim).Similar(rec, similarRequest("2", ""))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, sim.gotLimit)
		assert.JSONEq(t, `{"similar":[]}`, rec.Body.String())
	})

	t.Run("explicit limit", func(t *testing.T) {
		sim := &mockSimilarity{}
		rec := httptest.NewRecorder()

		NewInsightsHandler(&mockDigests{}, sim).Similar(rec, similarRequest("2", "?limit=3"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, sim.gotLimit)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := httptest.NewRecorder()

		NewInsightsHandler(&mockDigests{}, &mockSimilarity{}).Similar(rec, similarRequest("2", "?limit=500"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not analyzed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		sim := &mockSimilarity{err: &huberrors.NotAnalyzedError{FeedbackID: 2}}

		NewInsightsHandler(&mockDigests{}, sim).Similar(rec, similarRequest("2", ""))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Feedback not found or not analyzed")
	})
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthHandler_Check(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(fakePinger{}).Check(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(fakePinger{err: errors.New("refused")}).Check(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(nil).Check(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
}
