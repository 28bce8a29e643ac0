// Package pipeline runs feedback annotation in bounded-concurrency batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/insighthub/engine/internal/insighterrors"
	"github.com/insighthub/engine/internal/models"
	"github.com/insighthub/engine/internal/observability"
	"github.com/insighthub/engine/internal/repository"
)

// Annotator turns one feedback item into a committable insight.
type Annotator interface {
	Annotate(ctx context.Context, item *models.FeedbackItem) (*models.Insight, error)
}

// FeedbackSource lists feedback items awaiting annotation.
type FeedbackSource interface {
	ListUnprocessed(ctx context.Context, limit int) ([]models.FeedbackItem, error)
}

// InsightCommitter atomically stores an insight and marks its item processed.
type InsightCommitter interface {
	CommitInsight(ctx context.Context, insight *models.Insight) error
}

const defaultMaxConcurrent = 4

// Runner executes processing runs. Items in a batch are annotated
// concurrently up to the configured limit; one item's failure never aborts
// its siblings, it only shows up in the run report.
type Runner struct {
	source        FeedbackSource
	annotator     Annotator
	committer     InsightCommitter
	maxConcurrent int
	logger        *slog.Logger
	metrics       observability.EngineMetrics
}

// RunnerOption configures the Runner.
type RunnerOption func(*Runner)

// WithMaxConcurrent caps in-flight annotations per run.
func WithMaxConcurrent(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxConcurrent = n
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMetrics records run and item metrics. Nil disables recording.
func WithMetrics(metrics observability.EngineMetrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = metrics
	}
}

// NewRunner creates a pipeline runner.
func NewRunner(source FeedbackSource, annotator Annotator, committer InsightCommitter, opts ...RunnerOption) *Runner {
	r := &Runner{
		source:        source,
		annotator:     annotator,
		committer:     committer,
		maxConcurrent: defaultMaxConcurrent,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run annotates up to batchSize unprocessed items and reports per-item
// outcomes. Retryable items stay unprocessed; a concurrently committed item
// counts as skipped and its stored insight is left untouched.
func (r *Runner) Run(ctx context.Context, batchSize int) (*models.RunReport, error) {
	if batchSize <= 0 {
		return nil, insighterrors.NewValidationError("batch_size", "batch_size must be positive")
	}

	runID := uuid.Must(uuid.NewV7()).String()
	ctx = context.WithValue(ctx, observability.RunIDKey, runID)
	start := time.Now()

	items, err := r.source.ListUnprocessed(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed: %w", err)
	}

	r.logger.InfoContext(ctx, "processing run started", "batch_size", batchSize, "items", len(items))

	var (
		mu     sync.Mutex
		report models.RunReport
	)

	record := func(outcome string) {
		mu.Lock()
		switch outcome {
		case "processed":
			report.Processed++
		case "skipped":
			report.Skipped++
		default:
			report.Retryable++
		}
		mu.Unlock()

		if r.metrics != nil {
			r.metrics.RecordItemProcessed(ctx, outcome)
		}
	}

	// Plain errgroup, not WithContext: a failing item must not cancel its
	// siblings mid-annotation.
	g := new(errgroup.Group)
	g.SetLimit(r.maxConcurrent)

	for i := range items {
		item := &items[i]

		g.Go(func() error {
			r.processItem(ctx, item, record)
			return nil
		})
	}

	_ = g.Wait()

	duration := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordRun(ctx, duration)
	}

	r.logger.InfoContext(ctx, "processing run finished",
		"processed", report.Processed,
		"skipped", report.Skipped,
		"retryable", report.Retryable,
		"duration_ms", duration.Milliseconds(),
	)

	return &report, nil
}

func (r *Runner) processItem(ctx context.Context, item *models.FeedbackItem, record func(outcome string)) {
	if ctx.Err() != nil {
		record("retryable")
		return
	}

	if item.Processed {
		record("skipped")
		return
	}

	insight, err := r.annotator.Annotate(ctx, item)
	if err != nil {
		r.logger.WarnContext(ctx, "annotation failed, item stays retryable",
			"feedback_id", item.FeedbackID, "error", err)
		record("retryable")

		return
	}

	if err := r.committer.CommitInsight(ctx, insight); err != nil {
		if errors.Is(err, repository.ErrAlreadyProcessed) {
			record("skipped")
			return
		}

		r.logger.ErrorContext(ctx, "insight commit failed",
			"feedback_id", item.FeedbackID, "error", err)
		record("retryable")

		return
	}

	if r.metrics != nil {
		for _, attr := range insight.Degraded {
			r.metrics.RecordDegradation(ctx, attr)
		}
	}

	record("processed")
}
