package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
)

func themes(labels ...string) []models.Theme {
	out := make([]models.Theme, len(labels))
	for i, l := range labels {
		out[i] = models.Theme{Theme: l}
	}

	return out
}

func TestScoreSimilarity(t *testing.T) {
	tests := []struct {
		name      string
		source    []models.Theme
		candidate []models.Theme
		wantOK    bool
		wantScore float64
		wantMatch []string
	}{
		{
			name:      "identical sets",
			source:    themes("performance", "api"),
			candidate: themes("api", "performance"),
			wantOK:    true,
			wantScore: 1,
			wantMatch: []string{"api", "performance"},
		},
		{
			name:      "case insensitive",
			source:    themes("Performance"),
			candidate: themes("performance"),
			wantOK:    true,
			wantScore: 1,
			wantMatch: []string{"performance"},
		},
		{
			name:      "partial overlap rounds to two decimals",
			source:    themes("a", "b"),
			candidate: themes("b", "c", "d"),
			wantOK:    true,
			wantScore: 0.25,
			wantMatch: []string{"b"},
		},
		{
			name:      "one third",
			source:    themes("a", "b"),
			candidate: themes("a", "c"),
			wantOK:    true,
			wantScore: 0.33,
			wantMatch: []string{"a"},
		},
		{
			name:      "duplicates collapse",
			source:    themes("a", "A", "b"),
			candidate: themes("a"),
			wantOK:    true,
			wantScore: 0.5,
			wantMatch: []string{"a"},
		},
		{name: "disjoint", source: themes("a"), candidate: themes("b")},
		{name: "empty source", source: nil, candidate: themes("a")},
		{name: "both empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ScoreSimilarity(tt.source, tt.candidate)

			assert.Equal(t, tt.wantOK, ok)

			if !tt.wantOK {
				assert.Empty(t, got.MatchingThemes)

				return
			}

			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.Equal(t, tt.wantMatch, got.MatchingThemes)
		})
	}
}

func TestScoreSimilarity_Properties(t *testing.T) {
	sets := [][]models.Theme{
		themes("a"),
		themes("a", "b"),
		themes("B", "c", "d"),
		themes("x", "y", "z", "a"),
		themes("Export", "reporting"),
	}

	for _, a := range sets {
		assert.Equal(t, 1.0, mustScore(t, a, a).Score, "self similarity")

		for _, b := range sets {
			ab, okAB := ScoreSimilarity(a, b)
			ba, okBA := ScoreSimilarity(b, a)

			assert.Equal(t, okAB, okBA, "symmetry of presence")
			assert.InDelta(t, ab.Score, ba.Score, 1e-9, "symmetry of score")

			if okAB {
				assert.Greater(t, ab.Score, 0.0)
				assert.LessOrEqual(t, ab.Score, 1.0)
				assert.NotEmpty(t, ab.MatchingThemes)
			}
		}
	}
}

func mustScore(t *testing.T, a, b []models.Theme) models.SimilarityMatch {
	t.Helper()

	m, ok := ScoreSimilarity(a, b)
	require.True(t, ok)

	return m
}

// mockSimilarityRepo serves completed themes per feedback id in insertion order.
type mockSimilarityRepo struct {
	completed  map[int64]string
	order      []int64
	listCalls  int
	listLimits []int
}

func (m *mockSimilarityRepo) add(id int64, themesJSON string) {
	if m.completed == nil {
		m.completed = map[int64]string{}
	}

	m.completed[id] = themesJSON
	m.order = append(m.order, id)
}

func (m *mockSimilarityRepo) GetCompletedThemesJSON(_ context.Context, feedbackID int64) (string, error) {
	raw, ok := m.completed[feedbackID]
	if !ok {
		return "", &huberrors.NotAnalyzedError{FeedbackID: feedbackID}
	}

	return raw, nil
}

func (m *mockSimilarityRepo) ListSimilarityCandidates(_ context.Context, excludeID int64, limit int) ([]models.SimilarityCandidate, error) {
	m.listCalls++
	m.listLimits = append(m.listLimits, limit)

	var out []models.SimilarityCandidate

	for _, id := range m.order {
		if id == excludeID || len(out) >= limit {
			continue
		}

		out = append(out, models.SimilarityCandidate{
			Feedback:   models.Feedback{ID: id, Source: "github", Title: "item"},
			ThemesJSON: m.completed[id],
		})
	}

	return out, nil
}

func newSimilarityService(t *testing.T, repo *mockSimilarityRepo) *SimilarityService {
	t.Helper()

	return NewSimilarityService(SimilarityServiceParams{Repo: repo, Cache: newMemoryStore(t)})
}

func resultIDs(results []models.SimilarityResult) []int64 {
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.FeedbackID
	}

	return ids
}

func TestFindSimilar_RanksAndExcludesSource(t *testing.T) {
	repo := &mockSimilarityRepo{}
	repo.add(1, themesJSON(t, "export", "reporting"))
	repo.add(2, themesJSON(t, "export"))
	repo.add(3, themesJSON(t, "Export", "Reporting"))
	repo.add(4, themesJSON(t, "dark mode"))
	repo.add(5, themesJSON(t, "reporting", "billing", "sso"))

	got, err := newSimilarityService(t, repo).FindSimilar(context.Background(), 1, 10)

	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 5}, resultIDs(got.Similar))
	assert.InDelta(t, 1.0, got.Similar[0].SimilarityScore, 1e-9)
	assert.InDelta(t, 0.5, got.Similar[1].SimilarityScore, 1e-9)
	assert.InDelta(t, 0.25, got.Similar[2].SimilarityScore, 1e-9)
	assert.Equal(t, []string{"export", "reporting"}, got.Similar[0].MatchingThemes)
	assert.Equal(t, []int{similarityPoolSize}, repo.listLimits)
}

func TestFindSimilar_StableTies(t *testing.T) {
	repo := &mockSimilarityRepo{}
	repo.add(10, themesJSON(t, "a"))
	repo.add(7, themesJSON(t, "a"))
	repo.add(3, themesJSON(t, "a"))
	repo.add(9, themesJSON(t, "a"))

	got, err := newSimilarityService(t, repo).FindSimilar(context.Background(), 10, 10)

	require.NoError(t, err)
	assert.Equal(t, []int64{7, 3, 9}, resultIDs(got.Similar))
}

func TestFindSimilar_RespectsLimit(t *testing.T) {
	repo := &mockSimilarityRepo{}
	repo.add(1, themesJSON(t, "a"))

	for id := int64(2); id <= 20; id++ {
		repo.add(id, themesJSON(t, "a"))
	}

	svc := newSimilarityService(t, repo)

	got, err := svc.FindSimilar(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Len(t, got.Similar, 3)

	got, err = svc.FindSimilar(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, got.Similar, DefaultSimilarLimit)
}

func TestFindSimilar_NotAnalyzed(t *testing.T) {
	tests := []struct {
		name  string
		setup func(repo *mockSimilarityRepo)
	}{
		{"no completed analysis", func(*mockSimilarityRepo) {}},
		{"empty themes", func(repo *mockSimilarityRepo) { repo.add(1, "[]") }},
		{"malformed themes", func(repo *mockSimilarityRepo) { repo.add(1, "{not json") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockSimilarityRepo{}
			tt.setup(repo)

			got, err := newSimilarityService(t, repo).FindSimilar(context.Background(), 1, 10)

			assert.Nil(t, got)
			require.ErrorIs(t, err, huberrors.ErrNotAnalyzed)
			assert.Zero(t, repo.listCalls)
		})
	}
}

func TestFindSimilar_SkipsMalformedCandidates(t *testing.T) {
	repo := &mockSimilarityRepo{}
	repo.add(1, themesJSON(t, "a"))
	repo.add(2, "not json")
	repo.add(3, themesJSON(t, "a", "b"))

	got, err := newSimilarityService(t, repo).FindSimilar(context.Background(), 1, 10)

	require.NoError(t, err)
	assert.Equal(t, []int64{3}, resultIDs(got.Similar))
}

func TestFindSimilar_NoOverlapIsEmptyList(t *testing.T) {
	repo := &mockSimilarityRepo{}
	repo.add(1, themesJSON(t, "a"))
	repo.add(2, themesJSON(t, "b"))

	got, err := newSimilarityService(t, repo).FindSimilar(context.Background(), 1, 10)

	require.NoError(t, err)
	assert.Empty(t, got.Similar)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"similar":[]}`, string(data))
}

func TestFindSimilar_UsesCache(t *testing.T) {
	repo := &mockSimilarityRepo{}
	repo.add(1, themesJSON(t, "a"))
	repo.add(2, themesJSON(t, "a"))

	store := &spyStore{Store: newMemoryStore(t)}
	svc := NewSimilarityService(SimilarityServiceParams{Repo: repo, Cache: store})

	first, err := svc.FindSimilar(context.Background(), 1, 10)
	require.NoError(t, err)

	repo.add(3, themesJSON(t, "a"))

	second, err := svc.FindSimilar(context.Background(), 1, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, resultIDs(first.Similar), resultIDs(second.Similar))
	assert.Contains(t, store.operations(), "put similar:1")
}

type fixedScorer struct{ score float64 }

func (s fixedScorer) Score(_, _ []models.Theme) (models.SimilarityMatch, bool) {
	return models.SimilarityMatch{Score: s.score, MatchingThemes: []string{"fixed"}}, true
}

func TestFindSimilar_CustomScorer(t *testing.T) {
	repo := &mockSimilarityRepo{}
	repo.add(1, themesJSON(t, "a"))
	repo.add(2, themesJSON(t, "z"))

	svc := NewSimilarityService(SimilarityServiceParams{Repo: repo, Scorer: fixedScorer{score: 0.42}, Cache: newMemoryStore(t)})

	got, err := svc.FindSimilar(context.Background(), 1, 10)

	require.NoError(t, err)
	require.Len(t, got.Similar, 1)
	assert.InDelta(t, 0.42, got.Similar[0].SimilarityScore, 1e-9)
}
