// Package trends aggregates processed insights into calendar-aligned
// frequency and sentiment series.
package trends

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/insighthub/engine/internal/insighterrors"
	"github.com/insighthub/engine/internal/models"
	"github.com/insighthub/engine/internal/repository"
)

const (
	defaultBuckets = 8
	maxBuckets     = 90
)

// KeyKind selects which insight attribute a trend series is keyed on.
const (
	KeyKindCategory = "category"
	KeyKindTheme    = "theme"
)

// TrendSource returns the non-empty aggregation buckets for a key.
type TrendSource interface {
	TrendSeries(ctx context.Context, window models.Window, keyKind, key string, from, to time.Time) ([]repository.TrendBucket, error)
}

// Service computes dense trend series. Buckets the store has no rows for are
// filled with zero frequency so consumers always see a contiguous series.
type Service struct {
	source TrendSource
	logger *slog.Logger
}

// NewService creates a trends service.
func NewService(source TrendSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{source: source, logger: logger}
}

// Series returns exactly buckets trend points for the key, oldest first,
// ending with the bucket containing asOf. All bucket boundaries are UTC
// calendar days or ISO weeks (Monday start). GrowthRate is nil for the first
// bucket and whenever the previous bucket's frequency is zero.
func (s *Service) Series(
	ctx context.Context, window models.Window, keyKind, key string, buckets int, asOf time.Time,
) ([]models.TrendPoint, error) {
	if !window.Valid() {
		return nil, insighterrors.NewValidationError("window", fmt.Sprintf("unsupported window %q", window))
	}

	if keyKind != KeyKindCategory && keyKind != KeyKindTheme {
		return nil, insighterrors.NewValidationError("key_kind", fmt.Sprintf("unsupported key kind %q", keyKind))
	}

	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return nil, insighterrors.NewValidationError("key", "key cannot be empty")
	}

	if buckets <= 0 {
		buckets = defaultBuckets
	}

	if buckets > maxBuckets {
		return nil, insighterrors.NewValidationError("buckets", fmt.Sprintf("buckets cannot exceed %d", maxBuckets))
	}

	last := Truncate(asOf.UTC(), window)
	first := advance(last, window, -(buckets - 1))
	to := advance(last, window, 1)

	stored, err := s.source.TrendSeries(ctx, window, keyKind, key, first, to)
	if err != nil {
		return nil, fmt.Errorf("trend series: %w", err)
	}

	byStart := make(map[time.Time]repository.TrendBucket, len(stored))
	for _, b := range stored {
		byStart[b.WindowStart] = b
	}

	series := make([]models.TrendPoint, 0, buckets)
	prevFrequency := -1

	for start := first; !start.After(last); start = advance(start, window, 1) {
		point := models.TrendPoint{WindowStart: start}

		if b, ok := byStart[start]; ok {
			point.Frequency = b.Frequency
			avg := b.AvgSentiment
			point.AvgSentiment = &avg
		}

		if prevFrequency > 0 {
			growth := float64(point.Frequency-prevFrequency) / float64(prevFrequency)
			point.GrowthRate = &growth
		}

		prevFrequency = point.Frequency
		series = append(series, point)
	}

	return series, nil
}

// Truncate aligns t to the start of its UTC bucket: midnight for day windows,
// Monday midnight for week windows.
func Truncate(t time.Time, window models.Window) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	if window == models.WindowDay {
		return day
	}

	// time.Weekday counts Sunday as 0; shift so Monday starts the week.
	offset := (int(day.Weekday()) + 6) % 7

	return day.AddDate(0, 0, -offset)
}

func advance(t time.Time, window models.Window, n int) time.Time {
	if window == models.WindowWeek {
		return t.AddDate(0, 0, 7*n)
	}

	return t.AddDate(0, 0, n)
}
