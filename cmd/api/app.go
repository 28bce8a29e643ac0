package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insighthub/engine/internal/annotation"
	"github.com/insighthub/engine/internal/api/handlers"
	"github.com/insighthub/engine/internal/api/middleware"
	"github.com/insighthub/engine/internal/capability"
	"github.com/insighthub/engine/internal/config"
	"github.com/insighthub/engine/internal/googleai"
	"github.com/insighthub/engine/internal/observability"
	"github.com/insighthub/engine/internal/openai"
	"github.com/insighthub/engine/internal/pipeline"
	"github.com/insighthub/engine/internal/repository"
	"github.com/insighthub/engine/internal/search"
	"github.com/insighthub/engine/internal/summary"
	"github.com/insighthub/engine/internal/trends"
	"github.com/insighthub/engine/internal/worker"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg           *config.Config
	db            *pgxpool.Pool
	server        *http.Server
	worker        *worker.ProcessingWorker
	meterProvider observability.MeterProviderShutdown
}

var errUnsupportedProvider = errors.New("unsupported capability provider")

const (
	providerOpenAI = "openai"
	providerGoogle = "google"
	providerStub   = "stub"
)

const maxRequestBodyBytes = 1 << 20

// buildCapabilities creates the text-generation and embedding capabilities
// from config. When both sides use the Google provider they share one client.
func buildCapabilities(ctx context.Context, cfg *config.Config) (capability.TextGenerator, capability.Embedder, error) {
	var googleClient *googleai.Client

	newGoogleClient := func() (*googleai.Client, error) {
		if googleClient != nil {
			return googleClient, nil
		}

		client, err := googleai.NewClient(ctx, cfg.GoogleAPIKey,
			googleai.WithTextGenModel(cfg.TextGenModel),
			googleai.WithEmbeddingModel(cfg.EmbeddingModel),
			googleai.WithDimensions(cfg.EmbeddingDimensions),
		)
		if err != nil {
			return nil, fmt.Errorf("create google client: %w", err)
		}

		googleClient = client

		return client, nil
	}

	var textGen capability.TextGenerator

	switch cfg.TextGenProvider {
	case providerGoogle:
		client, err := newGoogleClient()
		if err != nil {
			return nil, nil, err
		}

		textGen = client
	case providerStub:
		slog.Warn("using deterministic stub text generation (TEXTGEN_PROVIDER=stub)")
		textGen = capability.NewStubTextGenerator()
	default:
		return nil, nil, fmt.Errorf("%w: TEXTGEN_PROVIDER=%s", errUnsupportedProvider, cfg.TextGenProvider)
	}

	var embedder capability.Embedder

	switch cfg.EmbeddingProvider {
	case providerOpenAI:
		embedder = openai.NewClient(cfg.OpenAIAPIKey,
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithDimensions(cfg.EmbeddingDimensions),
		)
	case providerGoogle:
		client, err := newGoogleClient()
		if err != nil {
			return nil, nil, err
		}

		embedder = client
	case providerStub:
		slog.Warn("using deterministic stub embeddings (EMBEDDING_PROVIDER=stub)")
		embedder = capability.NewStubEmbedder(cfg.EmbeddingDimensions)
	default:
		return nil, nil, fmt.Errorf("%w: EMBEDDING_PROVIDER=%s", errUnsupportedProvider, cfg.EmbeddingProvider)
	}

	return textGen, embedder, nil
}

// NewApp builds and wires all components. It does not start the HTTP server
// or the background worker; call Run to start and block until shutdown.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	var (
		meterProvider  observability.MeterProviderShutdown
		metricsHandler http.Handler
		metrics        observability.EngineMetrics
		err            error
	)

	if cfg.MetricsEnabled {
		meterProvider, metricsHandler, metrics, err = observability.NewMeterProvider(ctx, observability.MeterProviderConfig{})
		if err != nil {
			return nil, fmt.Errorf("setup metrics: %w", err)
		}
	} else {
		slog.Warn("metrics not enabled (METRICS_ENABLED=false)")
	}

	// Install TraceContextHandler unconditionally so request_id and run_id appear in logs.
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(slog.Default().Handler())))

	textGen, embedder, err := buildCapabilities(ctx, cfg)
	if err != nil {
		return nil, err
	}

	feedbackRepo := repository.NewFeedbackRepository(db)
	insightsRepo := repository.NewInsightsRepository(db, cfg.EmbeddingDimensions)
	patternsRepo := repository.NewPatternsRepository(db)

	engine := annotation.NewEngine(textGen, embedder,
		annotation.WithRateLimit(cfg.CapabilityRateLimit),
		annotation.WithMaxAttempts(cfg.CapabilityMaxAttempts),
		annotation.WithMaxSummaryChars(cfg.SummaryMaxChars),
		annotation.WithMetrics(metrics),
	)

	runner := pipeline.NewRunner(feedbackRepo, engine, insightsRepo,
		pipeline.WithMaxConcurrent(cfg.ProcessingMaxConcurrent),
		pipeline.WithMetrics(metrics),
	)

	searchService, err := search.NewService(embedder, insightsRepo, patternsRepo)
	if err != nil {
		return nil, fmt.Errorf("create search service: %w", err)
	}

	trendsService := trends.NewService(insightsRepo, slog.Default())
	summaryService := summary.NewService(insightsRepo, textGen,
		summary.WithMaxAttempts(cfg.CapabilityMaxAttempts),
	)

	server := newHTTPServer(cfg,
		handlers.NewHealthHandler(db),
		handlers.NewFeedbackHandler(feedbackRepo, insightsRepo),
		handlers.NewProcessingHandler(runner, cfg.ProcessingBatchSize),
		handlers.NewSearchHandler(searchService),
		handlers.NewTrendsHandler(trendsService),
		handlers.NewSummaryHandler(summaryService),
		metricsHandler,
		metrics,
	)

	return &App{
		cfg:           cfg,
		db:            db,
		server:        server,
		worker:        worker.NewProcessingWorker(runner, cfg.ProcessingInterval, cfg.ProcessingBatchSize),
		meterProvider: meterProvider,
	}, nil
}

// newHTTPServer builds the HTTP server and muxes (no auth on /health and /metrics, API key on /v1/).
func newHTTPServer(
	cfg *config.Config,
	health *handlers.HealthHandler,
	feedback *handlers.FeedbackHandler,
	processing *handlers.ProcessingHandler,
	searchHandler *handlers.SearchHandler,
	trendsHandler *handlers.TrendsHandler,
	summaryHandler *handlers.SummaryHandler,
	metricsHandler http.Handler,
	metrics observability.EngineMetrics,
) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", health.Check)

	if metricsHandler != nil {
		public.Handle("GET /metrics", metricsHandler)
	}

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/feedback", feedback.Ingest)
	protected.HandleFunc("GET /v1/feedback/{id}", feedback.Get)
	protected.HandleFunc("GET /v1/feedback/{id}/insight", feedback.GetInsight)
	protected.HandleFunc("POST /v1/feedback/{id}/reset", feedback.Reset)

	protected.HandleFunc("POST /v1/processing/runs", processing.Run)
	protected.HandleFunc("POST /v1/search/similar", searchHandler.Similar)
	protected.HandleFunc("GET /v1/trends", trendsHandler.Series)
	protected.HandleFunc("GET /v1/summaries/{date}", summaryHandler.Daily)

	protectedWithAuth := middleware.Auth(cfg.APIKey)(protected)
	mux := http.NewServeMux()
	mux.Handle("/v1/", protectedWithAuth)
	mux.Handle("/", public)

	// Metrics wraps everything below RequestID so durations cover the full request.
	var handler http.Handler = middleware.MaxBody(maxRequestBodyBytes, nil)(mux)
	handler = middleware.Logging(handler)
	handler = middleware.Metrics(metrics)(handler)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 60 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and the background worker, then blocks until
// ctx is cancelled (e.g. signal) or the server fails.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go a.worker.Start(workerCtx)

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
		cancelWorker()

		return err
	case <-ctx.Done():
		cancelWorker()

		return nil
	}
}

// Shutdown stops the server and the metrics provider in order. Call after Run returns.
func (a *App) Shutdown(ctx context.Context) error {
	var first error

	if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		first = fmt.Errorf("server shutdown: %w", err)
	}

	if a.meterProvider != nil {
		if err := a.meterProvider.Shutdown(ctx); err != nil {
			if first == nil {
				first = fmt.Errorf("meter provider shutdown: %w", err)
			} else {
				slog.Error("meter provider shutdown", "error", err)
			}
		}
	}

	return first
}
