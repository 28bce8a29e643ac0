// Package summary produces daily executive narratives over processed
// feedback insights.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/insighthub/engine/internal/capability"
	"github.com/insighthub/engine/internal/insighterrors"
	"github.com/insighthub/engine/internal/models"
)

const defaultMaxAttempts = 3

// ErrEmptyNarrative is returned when the generator produced no usable text.
var ErrEmptyNarrative = errors.New("summary: generator returned empty narrative")

// StatsSource aggregates one day's processed insights.
type StatsSource interface {
	DailyStats(ctx context.Context, day time.Time) (*models.DailyStats, error)
}

// Service generates daily summaries. Days without processed feedback get a
// fixed narrative without spending a capability call.
type Service struct {
	source      StatsSource
	textGen     capability.TextGenerator
	maxAttempts int
	logger      *slog.Logger
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithMaxAttempts sets the generation retry budget.
func WithMaxAttempts(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithLogger sets the service's logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a summary service.
func NewService(source StatsSource, textGen capability.TextGenerator, opts ...ServiceOption) *Service {
	s := &Service{
		source:      source,
		textGen:     textGen,
		maxAttempts: defaultMaxAttempts,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Daily returns the summary for the UTC calendar day containing day.
func (s *Service) Daily(ctx context.Context, day time.Time) (*models.DailySummary, error) {
	stats, err := s.source.DailyStats(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}

	out := &models.DailySummary{Day: stats.Day, Stats: *stats}

	if stats.TotalFeedback == 0 {
		out.Narrative = fmt.Sprintf("No processed feedback recorded for %s.", stats.Day.Format("2006-01-02"))
		return out, nil
	}

	narrative, err := s.generate(ctx, buildPrompt(stats))
	if err != nil {
		return nil, err
	}

	out.Narrative = narrative

	return out, nil
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	var narrative string

	op := func() error {
		res, err := s.textGen.Generate(ctx, prompt)
		if err != nil {
			return err
		}

		res = strings.TrimSpace(res)
		if res == "" {
			return ErrEmptyNarrative
		}

		narrative = res

		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	//nolint:gosec // G115: maxAttempts is validated positive at construction
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxAttempts-1)), ctx)

	if err := backoff.Retry(op, bo); err != nil {
		return "", insighterrors.NewCapabilityUnavailableError("text_generation", err)
	}

	return narrative, nil
}

func buildPrompt(stats *models.DailyStats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a concise executive summary of customer feedback for %s.\n\n", stats.Day.Format("2006-01-02"))
	fmt.Fprintf(&b, "Total feedback processed: %d\n", stats.TotalFeedback)
	fmt.Fprintf(&b, "Critical issues: %d\n", stats.CriticalCount)

	if stats.AvgSentiment != nil {
		fmt.Fprintf(&b, "Average sentiment: %.2f\n", *stats.AvgSentiment)
	}

	if len(stats.TopCategories) > 0 {
		b.WriteString("Top issue categories:\n")
		for _, cc := range stats.TopCategories {
			fmt.Fprintf(&b, "- %s (%d)\n", cc.Category, cc.Count)
		}
	}

	if len(stats.TopThemes) > 0 {
		fmt.Fprintf(&b, "Recurring themes: %s\n", strings.Join(stats.TopThemes, ", "))
	}

	if len(stats.CriticalSummaries) > 0 {
		b.WriteString("Critical reports:\n")
		for _, sum := range stats.CriticalSummaries {
			fmt.Fprintf(&b, "- %s\n", sum)
		}
	}

	b.WriteString("\nCover the overall mood, the dominant issues, and what needs attention first.")

	return b.String()
}
