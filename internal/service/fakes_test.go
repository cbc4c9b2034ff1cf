package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
	"github.com/formbricks/feedback-insights/pkg/cache"
)

// mockFeedbackRepo is an in-memory feedback store keyed by id.
type mockFeedbackRepo struct {
	mu        sync.Mutex
	items     map[int64]*models.Feedback
	statuses  []models.AnalysisStatus
	updateErr error
	nextID    int64
}

func newMockFeedbackRepo(items ...*models.Feedback) *mockFeedbackRepo {
	m := &mockFeedbackRepo{items: map[int64]*models.Feedback{}}
	for _, f := range items {
		m.items[f.ID] = f
		m.nextID = max(m.nextID, f.ID)
	}

	return m
}

func (m *mockFeedbackRepo) Create(_ context.Context, req *models.CreateFeedbackRequest, fingerprint string) (*models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.items {
		if f.Fingerprint == fingerprint {
			return f, nil
		}
	}

	m.nextID++
	f := &models.Feedback{
		ID: m.nextID, Source: req.Source, Title: req.Title, Body: req.Body,
		Fingerprint: fingerprint, AnalysisStatus: models.AnalysisStatusPending, CreatedAt: time.Now(),
	}
	m.items[f.ID] = f

	return f, nil
}

func (m *mockFeedbackRepo) InsertSeed(ctx context.Context, item models.SeedFeedback) (bool, error) {
	m.mu.Lock()
	for _, f := range m.items {
		if f.Fingerprint == item.Fingerprint {
			m.mu.Unlock()

			return false, nil
		}
	}
	m.mu.Unlock()

	_, err := m.Create(ctx, &models.CreateFeedbackRequest{Source: item.Source, Title: item.Title, Body: item.Body}, item.Fingerprint)

	return err == nil, err
}

func (m *mockFeedbackRepo) GetByID(_ context.Context, id int64) (*models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.items[id]
	if !ok {
		return nil, huberrors.NewNotFoundError("feedback", "Feedback not found")
	}

	cp := *f

	return &cp, nil
}

func (m *mockFeedbackRepo) UpdateStatus(_ context.Context, id int64, status models.AnalysisStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}

	f, ok := m.items[id]
	if !ok {
		return huberrors.NewNotFoundError("feedback", "Feedback not found")
	}

	f.AnalysisStatus = status
	m.statuses = append(m.statuses, status)

	return nil
}

func (m *mockFeedbackRepo) List(_ context.Context, _ *models.ListFeedbackFilters) ([]models.FeedbackListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := []models.FeedbackListItem{}
	for _, f := range m.items {
		items = append(items, models.FeedbackListItem{Feedback: *f})
	}

	return items, nil
}

func (m *mockFeedbackRepo) Count(_ context.Context, _ *models.ListFeedbackFilters) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.items)), nil
}

func (m *mockFeedbackRepo) ListIDsByStatus(_ context.Context, status models.AnalysisStatus, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []int64

	for id := int64(1); id <= m.nextID && len(ids) < limit; id++ {
		if f, ok := m.items[id]; ok && f.AnalysisStatus == status {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

func (m *mockFeedbackRepo) status(id int64) models.AnalysisStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.items[id].AnalysisStatus
}

// mockAnalysisRepo records upserts the way the analysis table would merge them.
type mockAnalysisRepo struct {
	mu        sync.Mutex
	rows      map[int64]*models.Analysis
	upsertErr error
}

func newMockAnalysisRepo() *mockAnalysisRepo {
	return &mockAnalysisRepo{rows: map[int64]*models.Analysis{}}
}

func (m *mockAnalysisRepo) UpsertResult(_ context.Context, feedbackID int64, result *models.AIAnalysis, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upsertErr != nil {
		return m.upsertErr
	}

	themes, _ := json.Marshal(result.Themes)
	label := result.Sentiment.Label
	themesJSON := string(themes)
	m.rows[feedbackID] = &models.Analysis{
		FeedbackID:     feedbackID,
		SentimentLabel: &label,
		UrgencyScore:   &result.Urgency.Score,
		ThemesJSON:     &themesJSON,
		Summary:        &result.Summary,
		Model:          &model,
	}

	return nil
}

func (m *mockAnalysisRepo) UpsertError(_ context.Context, feedbackID int64, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[feedbackID]
	if !ok {
		row = &models.Analysis{FeedbackID: feedbackID}
		m.rows[feedbackID] = row
	}

	row.Error = &message

	return nil
}

func (m *mockAnalysisRepo) GetByFeedbackID(_ context.Context, feedbackID int64) (*models.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[feedbackID]
	if !ok {
		return nil, huberrors.NewNotFoundError("analysis", "analysis not found")
	}

	return row, nil
}

// mockEngine replays scripted responses; the last one repeats.
type mockEngine struct {
	mu        sync.Mutex
	responses []json.RawMessage
	errs      []error
	calls     int
	requests  []models.InferenceRequest
	onRun     func()
}

func (m *mockEngine) Run(_ context.Context, _ string, req models.InferenceRequest) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.onRun != nil {
		m.onRun()
	}

	i := min(m.calls, max(len(m.responses), len(m.errs))-1)
	m.calls++
	m.requests = append(m.requests, req)

	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}

	if err != nil {
		return nil, err
	}

	return m.responses[i], nil
}

func (m *mockEngine) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// spyStore wraps a cache.Store and records the operations applied to it.
type spyStore struct {
	cache.Store

	mu  sync.Mutex
	ops []string
}

func (s *spyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.record("get " + key)

	return s.Store.Get(ctx, key)
}

func (s *spyStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.record("put " + key)

	return s.Store.Put(ctx, key, value, ttl)
}

func (s *spyStore) Delete(ctx context.Context, key string) error {
	s.record("delete " + key)

	return s.Store.Delete(ctx, key)
}

func (s *spyStore) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops = append(s.ops, op)
}

func (s *spyStore) operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.ops...)
}

func newMemoryStore(t *testing.T) *cache.MemoryStore {
	t.Helper()

	store, err := cache.NewMemoryStore(100)
	require.NoError(t, err)

	return store
}

const validAnalysisJSON = `{
	"sentiment": {"label": "negative", "confidence": 0.92},
	"urgency": {"score": 85, "reason": "Blocks quarterly reporting"},
	"themes": [
		{"theme": "Export", "impact_area": "engineering", "evidence_quote": "the file is corrupted"},
		{"theme": "Reporting", "impact_area": "product", "evidence_quote": "blocking our quarterly reporting"}
	],
	"summary": "CSV export produces corrupted files.",
	"next_action": "Fix the CSV encoder and add an Excel compatibility test."
}`

func themesJSON(t *testing.T, labels ...string) string {
	t.Helper()

	themes := make([]models.Theme, len(labels))
	for i, l := range labels {
		themes[i] = models.Theme{Theme: l, ImpactArea: "product", EvidenceQuote: "quote"}
	}

	data, err := json.Marshal(themes)
	require.NoError(t, err)

	return string(data)
}
