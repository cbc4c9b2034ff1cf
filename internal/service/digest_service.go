package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/formbricks/feedback-insights/internal/models"
	"github.com/formbricks/feedback-insights/internal/observability"
	"github.com/formbricks/feedback-insights/pkg/cache"
)

const (
	// DigestCacheTTL is how long a digest report stays cached.
	DigestCacheTTL = 10 * time.Minute
	topThemesLimit = 5
)

// DigestRepository runs the windowed aggregates over feedback created at or after since.
type DigestRepository interface {
	CountFeedbackSince(ctx context.Context, since time.Time) (int64, error)
	SentimentCountsSince(ctx context.Context, since time.Time) (map[models.SentimentLabel]int64, error)
	AverageUrgencySince(ctx context.Context, since time.Time) (*float64, error)
	ThemesJSONSince(ctx context.Context, since time.Time) ([]string, error)
	SourceCountsSince(ctx context.Context, since time.Time) ([]models.SourceCount, error)
}

// DigestService computes windowed statistics over analyzed feedback.
type DigestService struct {
	repo         DigestRepository
	cache        *cache.LoaderCache[models.DigestReport]
	cacheMetrics observability.CacheMetrics
	metrics      observability.AnalysisMetrics
	logger       *slog.Logger
	now          func() time.Time
}

// DigestServiceParams configures DigestService. Now defaults to time.Now and Logger to
// slog.Default(); metrics may be nil.
type DigestServiceParams struct {
	Repo         DigestRepository
	Cache        cache.Store
	CacheMetrics observability.CacheMetrics
	Metrics      observability.AnalysisMetrics
	Logger       *slog.Logger
	Now          func() time.Time
}

// NewDigestService creates a DigestService.
func NewDigestService(p DigestServiceParams) *DigestService {
	now := p.Now
	if now == nil {
		now = time.Now
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DigestService{
		repo:         p.Repo,
		cache:        cache.NewLoaderCache[models.DigestReport](p.Cache, DigestCacheTTL),
		cacheMetrics: p.CacheMetrics,
		metrics:      p.Metrics,
		logger:       logger,
		now:          now,
	}
}

// DigestCacheKey returns the cache key of a window's report.
func DigestCacheKey(window models.DigestWindow) string {
	return fmt.Sprintf("digest:%s", window)
}

// Digest returns the report for window, served from cache for up to DigestCacheTTL.
func (s *DigestService) Digest(ctx context.Context, window models.DigestWindow) (*models.DigestReport, error) {
	report, hit, err := s.cache.GetWithStats(ctx, DigestCacheKey(window), func(ctx context.Context) (models.DigestReport, error) {
		return s.compute(ctx, window)
	})
	if err != nil {
		return nil, err
	}

	if s.cacheMetrics != nil {
		if hit {
			s.cacheMetrics.RecordHit(ctx, observability.CacheNameDigest)
		} else {
			s.cacheMetrics.RecordMiss(ctx, observability.CacheNameDigest)
		}
	}

	return &report, nil
}

func (s *DigestService) compute(ctx context.Context, window models.DigestWindow) (models.DigestReport, error) {
	since := s.now().Add(-time.Duration(window.Hours()) * time.Hour)
	report := models.DigestReport{Window: window}

	total, err := s.repo.CountFeedbackSince(ctx, since)
	if err != nil {
		return report, fmt.Errorf("count feedback: %w", err)
	}

	report.TotalFeedback = total

	sentiments, err := s.repo.SentimentCountsSince(ctx, since)
	if err != nil {
		return report, fmt.Errorf("count sentiments: %w", err)
	}

	report.SentimentBreakdown = models.SentimentBreakdown{
		Positive: sentiments[models.SentimentPositive],
		Neutral:  sentiments[models.SentimentNeutral],
		Negative: sentiments[models.SentimentNegative],
	}

	avg, err := s.repo.AverageUrgencySince(ctx, since)
	if err != nil {
		return report, fmt.Errorf("average urgency: %w", err)
	}

	if avg != nil {
		report.AvgUrgency = int(math.Round(*avg))
	}

	themeRows, err := s.repo.ThemesJSONSince(ctx, since)
	if err != nil {
		return report, fmt.Errorf("list themes: %w", err)
	}

	report.TopThemes = s.topThemes(ctx, themeRows)

	sources, err := s.repo.SourceCountsSince(ctx, since)
	if err != nil {
		return report, fmt.Errorf("count sources: %w", err)
	}

	if sources == nil {
		sources = []models.SourceCount{}
	}

	report.Sources = sources

	return report, nil
}

// topThemes counts theme labels across rows and returns the most frequent, with ties in
// first-seen order. Rows that fail to decode are skipped.
func (s *DigestService) topThemes(ctx context.Context, rows []string) []models.ThemeCount {
	counts := make(map[string]int64)

	var order []string

	for _, row := range rows {
		themes, err := decodeThemes(row)
		if err != nil {
			s.logger.DebugContext(ctx, "digest: skipping malformed themes", "error", err)

			if s.metrics != nil {
				s.metrics.RecordMalformedThemes(ctx, "digest")
			}

			continue
		}

		for _, t := range themes {
			if _, seen := counts[t.Theme]; !seen {
				order = append(order, t.Theme)
			}

			counts[t.Theme]++
		}
	}

	top := make([]models.ThemeCount, 0, len(order))
	for _, theme := range order {
		top = append(top, models.ThemeCount{Theme: theme, Count: counts[theme]})
	}

	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Count > top[j].Count
	})

	if len(top) > topThemesLimit {
		top = top[:topThemesLimit]
	}

	return top
}
