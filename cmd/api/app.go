package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/formbricks/feedback-insights/internal/api/handlers"
	"github.com/formbricks/feedback-insights/internal/api/middleware"
	"github.com/formbricks/feedback-insights/internal/config"
	"github.com/formbricks/feedback-insights/internal/jobs"
	"github.com/formbricks/feedback-insights/internal/observability"
	"github.com/formbricks/feedback-insights/internal/openai"
	"github.com/formbricks/feedback-insights/internal/repository"
	"github.com/formbricks/feedback-insights/internal/service"
	"github.com/formbricks/feedback-insights/internal/worker"
	"github.com/formbricks/feedback-insights/internal/workers"
	"github.com/formbricks/feedback-insights/pkg/cache"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	cachePurge     *worker.CachePurgeWorker
	meterProvider  *observability.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// appMetrics unpacks the collectors; every field is nil when metrics are disabled.
type appMetrics struct {
	analysis observability.AnalysisMetrics
	cache    observability.CacheMetrics
	api      observability.APIMetrics
}

// setupMetrics creates the meter provider and collectors when OTEL_METRICS_EXPORTER is set.
// When NewMeterProvider returns nil (unsupported or disabled exporter), metrics are disabled.
func setupMetrics(cfg *config.Config) (*observability.MeterProvider, appMetrics, error) {
	if cfg.OtelMetricsExporter == "" {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")

		return nil, appMetrics{}, nil
	}

	mp, err := observability.NewMeterProvider(cfg)
	if err != nil {
		return nil, appMetrics{}, fmt.Errorf("create meter provider: %w", err)
	}

	if mp == nil {
		slog.Warn("metrics not enabled: unsupported OTEL_METRICS_EXPORTER", "exporter", cfg.OtelMetricsExporter)

		return nil, appMetrics{}, nil
	}

	metrics, err := observability.NewMetrics(mp.ServiceMeter())
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, appMetrics{}, fmt.Errorf("create metrics: %w", err)
	}

	return mp, appMetrics{analysis: metrics.Analysis, cache: metrics.Cache, api: metrics.API}, nil
}

// newCacheStore returns the configured cache backend. The postgres backend also returns the
// worker that purges expired rows.
func newCacheStore(cfg *config.Config, db *pgxpool.Pool, metrics observability.CacheMetrics) (cache.Store, *worker.CachePurgeWorker, error) {
	if cfg.CacheBackend == config.CacheBackendPostgres {
		entries := repository.NewCacheEntriesRepository(db)

		return entries, worker.NewCachePurgeWorker(entries, cfg.CachePurgeInterval, metrics), nil
	}

	store, err := cache.NewMemoryStore(cfg.CacheMaxEntries)
	if err != nil {
		return nil, nil, fmt.Errorf("create memory cache: %w", err)
	}

	return store, nil, nil
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (_ *App, err error) {
	meterProvider, metrics, err := setupMetrics(cfg)
	if err != nil {
		return nil, err
	}

	var tracerProvider *sdktrace.TracerProvider

	if cfg.OtelTracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracerProvider, err = observability.NewTracerProvider(ctx, cfg)
		if err != nil {
			if err2 := observability.ShutdownMeterProvider(context.Background(), meterProvider); err2 != nil {
				slog.Error("shutdown meter provider after tracer provider error", "error", err2)
			}

			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
	}

	// Release providers when a later wiring step fails.
	defer func() {
		if err != nil {
			if err2 := shutdownObservability(context.Background(), tracerProvider, meterProvider); err2 != nil {
				slog.Error("shutdown observability after wiring error", "error", err2)
			}
		}
	}()

	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	}

	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	store, cachePurge, err := newCacheStore(cfg, db, metrics.cache)
	if err != nil {
		return nil, err
	}

	feedbackRepo := repository.NewFeedbackRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	digestRepo := repository.NewDigestRepository(db)

	engine := openai.NewClient(cfg.OpenAIAPIKey,
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithTimeout(cfg.InferenceTimeout),
		openai.WithMaxRetries(cfg.InferenceMaxRetries),
		openai.WithRateLimit(cfg.InferenceRateLimit),
	)

	feedbackService := service.NewFeedbackService(feedbackRepo, analysisRepo)
	analysisService := service.NewAnalysisService(service.AnalysisServiceParams{
		Feedback:     feedbackRepo,
		Analyses:     analysisRepo,
		Engine:       engine,
		Cache:        store,
		Model:        cfg.InferenceModel,
		CacheMetrics: metrics.cache,
		Metrics:      metrics.analysis,
		Logger:       slog.Default(),
	})
	similarityService := service.NewSimilarityService(service.SimilarityServiceParams{
		Repo:         analysisRepo,
		Cache:        store,
		CacheMetrics: metrics.cache,
		Metrics:      metrics.analysis,
		Logger:       slog.Default(),
	})
	digestService := service.NewDigestService(service.DigestServiceParams{
		Repo:         digestRepo,
		Cache:        store,
		CacheMetrics: metrics.cache,
		Metrics:      metrics.analysis,
		Logger:       slog.Default(),
	})

	var (
		riverClient *river.Client[pgx.Tx]
		enqueuer    handlers.AnalysisEnqueuer
	)

	if cfg.RiverEnabled {
		riverClient, err = newRiverClient(cfg, db, analysisService)
		if err != nil {
			return nil, err
		}

		enqueuer = service.NewAnalysisJobs(riverClient, feedbackRepo, cfg.RiverMaxAttempts, metrics.analysis)
	} else {
		slog.Info("async analysis disabled (RIVER_ENABLED=false)")
	}

	server := newHTTPServer(cfg, routes{
		health:   handlers.NewHealthHandler(db),
		feedback: handlers.NewFeedbackHandler(feedbackService),
		analysis: handlers.NewAnalysisHandler(analysisService, enqueuer),
		insights: handlers.NewInsightsHandler(digestService, similarityService),
	}, metrics.api, meterProvider, tracerProvider)

	return &App{
		cfg:            cfg,
		db:             db,
		server:         server,
		river:          riverClient,
		cachePurge:     cachePurge,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
	}, nil
}

// newRiverClient registers the analysis worker on its own queue.
func newRiverClient(cfg *config.Config, db *pgxpool.Pool, analyzer *service.AnalysisService) (*river.Client[pgx.Tx], error) {
	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewAnalyzeFeedbackWorker(analyzer, 2*cfg.InferenceTimeout))

	client, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			service.AnalysisQueueName: {MaxWorkers: cfg.RiverWorkers},
		},
		Workers:      riverWorkers,
		ErrorHandler: &jobs.ErrorHandler{},
		MaxAttempts:  cfg.RiverMaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	slog.Info("async analysis enabled", "workers", cfg.RiverWorkers, "max_attempts", cfg.RiverMaxAttempts)

	return client, nil
}

type routes struct {
	health   *handlers.HealthHandler
	feedback *handlers.FeedbackHandler
	analysis *handlers.AnalysisHandler
	insights *handlers.InsightsHandler
}

// newHTTPServer builds the HTTP server.
// Handler chain: RequestID -> otelhttp(Metrics(Logging(MaxBody(mux)))) so access logs get trace_id/span_id from context.
func newHTTPServer(
	cfg *config.Config,
	r routes,
	apiMetrics observability.APIMetrics,
	meterProvider *observability.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", r.health.Check)

	mux.HandleFunc("POST /api/feedback", r.feedback.Create)
	mux.HandleFunc("GET /api/feedback", r.feedback.List)
	mux.HandleFunc("GET /api/feedback/{id}", r.feedback.Get)
	mux.HandleFunc("POST /api/seed", r.feedback.Seed)

	mux.HandleFunc("POST /api/analyze/{id}", r.analysis.Analyze)

	mux.HandleFunc("GET /api/digest", r.insights.Digest)
	mux.HandleFunc("GET /api/similar/{id}", r.insights.Similar)

	if meterProvider != nil {
		mux.Handle("GET /metrics", meterProvider.Handler)
	}

	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for health checks and scrapes to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	inner := middleware.MaxBody(middleware.DefaultMaxBodyBytes, apiMetrics)(mux)
	inner = middleware.Logging(inner)
	inner = middleware.Metrics(apiMetrics)(inner)
	handler := otelhttp.NewHandler(inner, "feedback-insights-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout = 15 * time.Second
		idleTimeout = 60 * time.Second
	)

	return &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: readTimeout,
		// A synchronous analysis may take two inference calls.
		WriteTimeout: 2*cfg.InferenceTimeout + readTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server, River and the cache purge worker, then blocks until ctx is
// cancelled (e.g. signal) or a component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	bgCtx, cancelBackground := context.WithCancel(ctx)
	defer cancelBackground()

	if a.cachePurge != nil {
		go a.cachePurge.Start(bgCtx)
	}

	if a.river != nil {
		go func() {
			if err := a.river.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				select {
				case runErr <- fmt.Errorf("river: %w", err):
				default:
				}
			}
		}()
	}

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *observability.MeterProvider) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
		if first == nil {
			first = err
		} else {
			slog.Error("shutdown meter provider", "error", err)
		}
	}

	return first
}

// Shutdown stops the server, then River (waiting for in-flight analyses). Call after Run returns.
// Observability is shut down once via defer; its error is returned only when server and River shut down successfully.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.stopRiver(ctx)

		return fmt.Errorf("server shutdown: %w", err)
	}

	if a.river == nil {
		return nil
	}

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	return nil
}

func (a *App) stopRiver(ctx context.Context) {
	if a.river == nil {
		return
	}

	if err := a.river.Stop(ctx); err != nil {
		slog.Error("river stop during server shutdown", "error", err)
	}
}
