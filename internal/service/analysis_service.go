package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/formbricks/feedback-insights/internal/huberrors"
	"github.com/formbricks/feedback-insights/internal/models"
	"github.com/formbricks/feedback-insights/internal/observability"
	"github.com/formbricks/feedback-insights/pkg/cache"
)

// AnalysisCacheTTL is how long a successful analysis stays in the cache.
const AnalysisCacheTTL = 6 * time.Hour

// InferenceEngine runs one structured-output inference call.
// The returned value is either a JSON object or a JSON string holding one.
type InferenceEngine interface {
	Run(ctx context.Context, model string, req models.InferenceRequest) (json.RawMessage, error)
}

// FeedbackStateRepository loads feedback items and persists their analysis status.
type FeedbackStateRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Feedback, error)
	UpdateStatus(ctx context.Context, id int64, status models.AnalysisStatus) error
}

// AnalysisWriter persists analysis outcomes, one row per feedback item.
type AnalysisWriter interface {
	UpsertResult(ctx context.Context, feedbackID int64, result *models.AIAnalysis, model string) error
	UpsertError(ctx context.Context, feedbackID int64, message string) error
}

// AnalysisService drives a feedback item through pending → processing → completed|failed.
type AnalysisService struct {
	feedback     FeedbackStateRepository
	analyses     AnalysisWriter
	engine       InferenceEngine
	cache        cache.Store
	model        string
	cacheMetrics observability.CacheMetrics
	metrics      observability.AnalysisMetrics
	logger       *slog.Logger
}

// AnalysisServiceParams configures AnalysisService. CacheMetrics, Metrics and Logger may be nil.
type AnalysisServiceParams struct {
	Feedback     FeedbackStateRepository
	Analyses     AnalysisWriter
	Engine       InferenceEngine
	Cache        cache.Store
	Model        string
	CacheMetrics observability.CacheMetrics
	Metrics      observability.AnalysisMetrics
	Logger       *slog.Logger
}

// NewAnalysisService creates an AnalysisService.
func NewAnalysisService(p AnalysisServiceParams) *AnalysisService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AnalysisService{
		feedback:     p.Feedback,
		analyses:     p.Analyses,
		engine:       p.Engine,
		cache:        p.Cache,
		model:        p.Model,
		cacheMetrics: p.CacheMetrics,
		metrics:      p.Metrics,
		logger:       logger,
	}
}

// AnalysisCacheKey returns the cache key of an item's analysis.
func AnalysisCacheKey(id int64) string {
	return fmt.Sprintf("analysis:%d", id)
}

// Analyze returns the analysis of a feedback item, running inference when needed.
//
// Without force, a cached result is returned as-is. With force, the cached entry is dropped first.
// A missing item yields a NotFoundError with no state change. Inference and validation failures are
// persisted (status failed plus an error row) and returned as an *huberrors.AnalysisFailedError.
func (s *AnalysisService) Analyze(ctx context.Context, id int64, force bool) (*models.AIAnalysis, error) {
	ctx = observability.WithFeedbackID(ctx, id)
	key := AnalysisCacheKey(id)

	if force {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "analysis cache delete failed", "key", key, "error", err)
		}
	} else if cached, ok := s.cachedAnalysis(ctx, key); ok {
		s.recordOutcome(ctx, observability.OutcomeCached)

		return cached, nil
	}

	feedback, err := s.feedback.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			s.recordOutcome(ctx, observability.OutcomeNotFound)
		}

		return nil, err
	}

	if err := s.feedback.UpdateStatus(ctx, id, models.AnalysisStatusProcessing); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	result, err := s.inferWithRetry(ctx, feedback)
	if err != nil {
		return nil, s.fail(ctx, id, err)
	}

	if err := s.analyses.UpsertResult(ctx, id, result, s.model); err != nil {
		return nil, s.fail(ctx, id, err)
	}

	if err := s.feedback.UpdateStatus(ctx, id, models.AnalysisStatusCompleted); err != nil {
		return nil, s.fail(ctx, id, err)
	}

	s.storeAnalysis(ctx, key, result)
	s.recordOutcome(ctx, observability.OutcomeCompleted)
	s.logger.InfoContext(ctx, "analysis completed",
		"sentiment", result.Sentiment.Label,
		"urgency", result.Urgency.Score,
		"themes", len(result.Themes),
	)

	return result, nil
}

// inferWithRetry calls the engine and retries exactly once when the output fails validation.
// Invocation errors are not retried here; the HTTP transport already retries those.
func (s *AnalysisService) inferWithRetry(ctx context.Context, feedback *models.Feedback) (*models.AIAnalysis, error) {
	req := buildAnalysisRequest(feedback)

	result, err := s.inferOnce(ctx, req, 1)
	if err == nil || !errors.Is(err, huberrors.ErrParse) {
		return result, err
	}

	s.logger.WarnContext(ctx, "inference output invalid, retrying", "attempt", 1, "error", err)

	if s.metrics != nil {
		s.metrics.RecordParseRetry(ctx)
	}

	return s.inferOnce(ctx, req, 2)
}

func (s *AnalysisService) inferOnce(ctx context.Context, req models.InferenceRequest, attempt int) (result *models.AIAnalysis, err error) {
	ctx, endSpan := observability.StartInferenceSpan(ctx, s.model, attempt)
	defer func() { endSpan(err) }()

	start := time.Now()

	raw, err := s.engine.Run(ctx, s.model, req)
	if err == nil {
		result, err = parseAnalysisOutput(raw)
		if err == nil {
			s.recordInference(ctx, start, observability.OutcomeCompleted)

			return result, nil
		}
	}

	s.recordInference(ctx, start, observability.OutcomeFailed)

	return nil, err
}

// fail persists the failure and returns the caller-visible error. The writes use a context that
// outlives a cancelled request so the item does not stay in processing.
func (s *AnalysisService) fail(ctx context.Context, id int64, cause error) error {
	persistCtx := context.WithoutCancel(ctx)
	message := cause.Error()

	s.logger.ErrorContext(ctx, "analysis failed", "error", cause)

	if err := s.feedback.UpdateStatus(persistCtx, id, models.AnalysisStatusFailed); err != nil {
		s.logger.ErrorContext(ctx, "mark failed", "error", err)
	}

	if err := s.analyses.UpsertError(persistCtx, id, message); err != nil {
		s.logger.ErrorContext(ctx, "record analysis error", "error", err)
	}

	s.recordOutcome(ctx, observability.OutcomeFailed)

	return huberrors.NewAnalysisFailedError(id, message)
}

// cachedAnalysis reports a hit only for an entry that decodes; anything else is a miss.
func (s *AnalysisService) cachedAnalysis(ctx context.Context, key string) (*models.AIAnalysis, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "analysis cache get failed", "key", key, "error", err)
	}

	if err != nil || !ok {
		s.recordCache(ctx, false)

		return nil, false
	}

	var result models.AIAnalysis
	if err := json.Unmarshal(data, &result); err != nil {
		s.logger.WarnContext(ctx, "analysis cache entry undecodable", "key", key, "error", err)
		s.recordCache(ctx, false)

		return nil, false
	}

	s.recordCache(ctx, true)

	return &result, true
}

func (s *AnalysisService) storeAnalysis(ctx context.Context, key string, result *models.AIAnalysis) {
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.WarnContext(ctx, "analysis cache encode failed", "key", key, "error", err)

		return
	}

	if err := s.cache.Put(ctx, key, data, AnalysisCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "analysis cache put failed", "key", key, "error", err)
	}
}

func (s *AnalysisService) recordCache(ctx context.Context, hit bool) {
	if s.cacheMetrics == nil {
		return
	}

	if hit {
		s.cacheMetrics.RecordHit(ctx, observability.CacheNameAnalysis)
	} else {
		s.cacheMetrics.RecordMiss(ctx, observability.CacheNameAnalysis)
	}
}

func (s *AnalysisService) recordOutcome(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordOutcome(ctx, outcome)
	}
}

func (s *AnalysisService) recordInference(ctx context.Context, start time.Time, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordInferenceDuration(ctx, time.Since(start), outcome)
	}
}
