package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
	"github.com/formbricks/feedback-insights/internal/observability"
	"github.com/formbricks/feedback-insights/pkg/cache"
)

const (
	// SimilarCacheTTL is how long a ranking stays cached.
	SimilarCacheTTL = 30 * time.Minute
	// DefaultSimilarLimit is the result count used when the caller passes none.
	DefaultSimilarLimit = 10
	// similarityPoolSize caps how many candidates are scored per lookup.
	similarityPoolSize = 50
)

// SimilarityRepository reads completed analyses for similarity ranking.
type SimilarityRepository interface {
	GetCompletedThemesJSON(ctx context.Context, feedbackID int64) (string, error)
	ListSimilarityCandidates(ctx context.Context, excludeID int64, limit int) ([]models.SimilarityCandidate, error)
}

// SimilarityService ranks previously analyzed items against one source item.
type SimilarityService struct {
	repo         SimilarityRepository
	scorer       SimilarityScorer
	cache        *cache.LoaderCache[[]models.SimilarityResult]
	cacheMetrics observability.CacheMetrics
	metrics      observability.AnalysisMetrics
	logger       *slog.Logger
}

// SimilarityServiceParams configures SimilarityService. Scorer defaults to JaccardScorer;
// CacheMetrics, Metrics and Logger may be nil.
type SimilarityServiceParams struct {
	Repo         SimilarityRepository
	Scorer       SimilarityScorer
	Cache        cache.Store
	CacheMetrics observability.CacheMetrics
	Metrics      observability.AnalysisMetrics
	Logger       *slog.Logger
}

// NewSimilarityService creates a SimilarityService.
func NewSimilarityService(p SimilarityServiceParams) *SimilarityService {
	scorer := p.Scorer
	if scorer == nil {
		scorer = JaccardScorer{}
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SimilarityService{
		repo:         p.Repo,
		scorer:       scorer,
		cache:        cache.NewLoaderCache[[]models.SimilarityResult](p.Cache, SimilarCacheTTL),
		cacheMetrics: p.CacheMetrics,
		metrics:      p.Metrics,
		logger:       logger,
	}
}

// SimilarCacheKey returns the cache key of an item's similarity ranking.
func SimilarCacheKey(id int64) string {
	return fmt.Sprintf("similar:%d", id)
}

// FindSimilar returns up to limit items ranked by descending similarity to sourceID.
// The source must have a completed analysis with at least one theme, otherwise a
// NotAnalyzedError is returned. The source itself is never part of the result.
func (s *SimilarityService) FindSimilar(ctx context.Context, sourceID int64, limit int) (*models.SimilarResponse, error) {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	ranked, hit, err := s.cache.GetWithStats(ctx, SimilarCacheKey(sourceID), func(ctx context.Context) ([]models.SimilarityResult, error) {
		return s.rank(ctx, sourceID)
	})
	if err != nil {
		return nil, err
	}

	if s.cacheMetrics != nil {
		if hit {
			s.cacheMetrics.RecordHit(ctx, observability.CacheNameSimilar)
		} else {
			s.cacheMetrics.RecordMiss(ctx, observability.CacheNameSimilar)
		}
	}

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return &models.SimilarResponse{Similar: ranked}, nil
}

// rank scores the whole candidate pool; the cached ranking is truncated per request.
func (s *SimilarityService) rank(ctx context.Context, sourceID int64) ([]models.SimilarityResult, error) {
	themesJSON, err := s.repo.GetCompletedThemesJSON(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	source, err := decodeThemes(themesJSON)
	if err != nil || len(source) == 0 {
		if err != nil {
			s.logger.WarnContext(ctx, "similarity: source themes undecodable", "feedback_id", sourceID, "error", err)
		}

		return nil, &huberrors.NotAnalyzedError{FeedbackID: sourceID}
	}

	candidates, err := s.repo.ListSimilarityCandidates(ctx, sourceID, similarityPoolSize)
	if err != nil {
		return nil, fmt.Errorf("list similarity candidates: %w", err)
	}

	results := make([]models.SimilarityResult, 0, len(candidates))

	for _, c := range candidates {
		if c.Feedback.ID == sourceID {
			continue
		}

		themes, err := decodeThemes(c.ThemesJSON)
		if err != nil {
			s.logger.WarnContext(ctx, "similarity: skipping candidate with malformed themes",
				"candidate_id", c.Feedback.ID, "error", err)

			if s.metrics != nil {
				s.metrics.RecordMalformedThemes(ctx, "similarity")
			}

			continue
		}

		match, ok := s.scorer.Score(source, themes)
		if !ok {
			continue
		}

		results = append(results, models.SimilarityResult{
			Feedback:        c.Feedback,
			FeedbackID:      c.Feedback.ID,
			SimilarityScore: match.Score,
			MatchingThemes:  match.MatchingThemes,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})

	return results, nil
}
