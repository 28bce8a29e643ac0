// Package annotation turns raw feedback text into structured insights by
// driving the text-generation and embedding capabilities through one
// extraction prompt per attribute.
package annotation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/insighthub/engine/internal/capability"
	"github.com/insighthub/engine/internal/insighterrors"
	"github.com/insighthub/engine/internal/models"
	"github.com/insighthub/engine/internal/observability"
)

const (
	defaultMaxAttempts     = 3
	defaultMaxSummaryChars = 500
)

// Engine annotates one feedback item at a time. Capability failures that
// survive the retry budget abort the item (it stays retryable); unusable
// capability output degrades the single affected attribute and the item
// still commits.
type Engine struct {
	textGen         capability.TextGenerator
	embedder        capability.Embedder
	limiter         *rate.Limiter
	maxAttempts     int
	maxSummaryChars int
	logger          *slog.Logger
	metrics         observability.EngineMetrics
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithRateLimit caps capability calls per second across all concurrent
// annotations. Non-positive disables the limiter.
func WithRateLimit(callsPerSecond float64) EngineOption {
	return func(e *Engine) {
		if callsPerSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(callsPerSecond), 1)
		}
	}
}

// WithMaxAttempts sets the per-call retry budget for remote capabilities.
func WithMaxAttempts(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithMaxSummaryChars caps stored per-item summaries.
func WithMaxSummaryChars(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSummaryChars = n
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records per-call capability metrics. Nil disables recording.
func WithMetrics(metrics observability.EngineMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// NewEngine creates an annotation engine over the given capabilities.
func NewEngine(textGen capability.TextGenerator, embedder capability.Embedder, opts ...EngineOption) *Engine {
	e := &Engine{
		textGen:         textGen,
		embedder:        embedder,
		maxAttempts:     defaultMaxAttempts,
		maxSummaryChars: defaultMaxSummaryChars,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Annotate extracts all insight attributes for one feedback item. The
// returned insight is complete and committable; err is non-nil only when a
// capability stayed unavailable and the item should be retried later.
func (e *Engine) Annotate(ctx context.Context, item *models.FeedbackItem) (*models.Insight, error) {
	insight := &models.Insight{
		FeedbackID:  item.FeedbackID,
		ProcessedAt: time.Now().UTC(),
	}

	degrade := func(attribute string) {
		insight.Degraded = append(insight.Degraded, attribute)
		e.logger.Warn("attribute extraction degraded",
			"feedback_id", item.FeedbackID, "attribute", attribute)
	}

	out, err := e.generate(ctx, sentimentPrompt(item.RawText))
	if err != nil {
		return nil, err
	}

	if score, clamped, ok := ParseSentiment(out); ok {
		insight.SentimentScore = score

		if clamped {
			degrade(models.DegradedSentiment)
		}
	} else {
		degrade(models.DegradedSentiment)
	}

	out, err = e.generate(ctx, urgencyPrompt(item.RawText))
	if err != nil {
		return nil, err
	}

	if level, ok := ParseUrgency(out); ok {
		insight.UrgencyLevel = level
	} else {
		insight.UrgencyLevel = models.UrgencyMedium
		degrade(models.DegradedUrgency)
	}

	out, err = e.generate(ctx, categoriesPrompt(item.RawText))
	if err != nil {
		return nil, err
	}

	if categories := normalizeLower(ParseList(out)); len(categories) > 0 {
		insight.Categories = categories
	} else {
		insight.Categories = []string{"other"}
		degrade(models.DegradedCategories)
	}

	out, err = e.generate(ctx, themesPrompt(item.RawText))
	if err != nil {
		return nil, err
	}

	if themes := normalizeLower(ParseList(out)); len(themes) > 0 {
		insight.Themes = themes
	} else {
		insight.Themes = []string{}
		degrade(models.DegradedThemes)
	}

	out, err = e.generate(ctx, summaryPrompt(item.RawText))
	if err != nil {
		return nil, err
	}

	if summary := TruncateSummary(out, e.maxSummaryChars); summary != "" {
		insight.Summary = summary
	} else {
		insight.Summary = TruncateSummary("Customer reported: "+item.RawText, e.maxSummaryChars)
		degrade(models.DegradedSummary)
	}

	out, err = e.generate(ctx, actionItemsPrompt(item.RawText))
	if err != nil {
		return nil, err
	}

	if items := ParseList(out); len(items) > 0 {
		insight.ActionItems = items
	} else {
		insight.ActionItems = []string{}
		degrade(models.DegradedActionItems)
	}

	embedding, err := e.embed(ctx, item.RawText)
	switch {
	case errors.Is(err, insighterrors.ErrDimensionMismatch):
		// Deterministic fault; retrying would reproduce it. The item
		// commits without a vector and sits out similarity search.
		degrade(models.DegradedEmbedding)
	case err != nil:
		return nil, err
	default:
		insight.Embedding = embedding
	}

	return insight, nil
}

// generate runs one text-generation call under the rate limiter with
// exponential-backoff retries.
func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	var out string

	op := func() error {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		start := time.Now()
		res, err := e.textGen.Generate(ctx, prompt)
		e.recordCall(ctx, "text_generation", err, time.Since(start))

		if err != nil {
			return err
		}

		out = res

		return nil
	}

	if err := backoff.Retry(op, e.newBackOff(ctx)); err != nil {
		return "", insighterrors.NewCapabilityUnavailableError("text_generation", err)
	}

	return out, nil
}

// embed runs one embedding call under the rate limiter with retries.
// Dimension mismatches are permanent and surface unwrapped so the caller can
// degrade instead of retrying the item.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32

	op := func() error {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		start := time.Now()
		res, err := e.embedder.Embed(ctx, text)
		e.recordCall(ctx, "embedding", err, time.Since(start))

		if err != nil {
			if errors.Is(err, insighterrors.ErrDimensionMismatch) {
				return backoff.Permanent(err)
			}

			return err
		}

		out = res

		return nil
	}

	if err := backoff.Retry(op, e.newBackOff(ctx)); err != nil {
		if errors.Is(err, insighterrors.ErrDimensionMismatch) {
			return nil, err
		}

		return nil, insighterrors.NewCapabilityUnavailableError("embedding", err)
	}

	return out, nil
}

func (e *Engine) recordCall(ctx context.Context, capabilityName string, err error, duration time.Duration) {
	if e.metrics == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}

	e.metrics.RecordCapabilityCall(ctx, capabilityName, outcome, duration)
}

func (e *Engine) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	//nolint:gosec // G115: maxAttempts is validated positive at construction
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.maxAttempts-1)), ctx)
}

func normalizeLower(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, item := range items {
		lower := normalizeSpace(item)
		if lower == "" {
			continue
		}

		if _, dup := seen[lower]; dup {
			continue
		}

		seen[lower] = struct{}{}
		out = append(out, lower)
	}

	return out
}
