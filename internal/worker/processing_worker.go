// Package worker provides background workers for the insight engine.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/insighthub/engine/internal/models"
)

// BatchRunner defines the interface for executing one processing run.
type BatchRunner interface {
	Run(ctx context.Context, batchSize int) (*models.RunReport, error)
}

// ProcessingWorker periodically drains the unprocessed feedback backlog so
// items arriving between explicit run requests still get annotated.
type ProcessingWorker struct {
	runner    BatchRunner
	interval  time.Duration
	batchSize int
}

// NewProcessingWorker creates a new background processing worker.
func NewProcessingWorker(runner BatchRunner, interval time.Duration, batchSize int) *ProcessingWorker {
	if batchSize <= 0 {
		batchSize = 50
	}

	return &ProcessingWorker{
		runner:    runner,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start begins the background worker loop. It runs until the context is
// cancelled. A non-positive interval disables the worker entirely.
func (w *ProcessingWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		slog.Info("background processing worker disabled")
		return
	}

	slog.Info("background processing worker started",
		"interval", w.interval,
		"batch_size", w.batchSize,
	)

	// Run immediately on startup
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("background processing worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce executes a single processing batch.
func (w *ProcessingWorker) runOnce(ctx context.Context) {
	report, err := w.runner.Run(ctx, w.batchSize)
	if err != nil {
		slog.Error("background processing run failed", "error", err)
		return
	}

	if report.Processed > 0 || report.Retryable > 0 {
		slog.Info("background processing run completed",
			"processed", report.Processed,
			"skipped", report.Skipped,
			"retryable", report.Retryable,
		)
	} else {
		slog.Debug("background processing run completed, backlog empty")
	}
}
