package trends

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insighthub/engine/internal/insighterrors"
	"github.com/insighthub/engine/internal/models"
	"github.com/insighthub/engine/internal/repository"
)

type mockTrendSource struct {
	seriesFn func(ctx context.Context, window models.Window, keyKind, key string, from, to time.Time) ([]repository.TrendBucket, error)
}

func (m *mockTrendSource) TrendSeries(
	ctx context.Context, window models.Window, keyKind, key string, from, to time.Time,
) ([]repository.TrendBucket, error) {
	return m.seriesFn(ctx, window, keyKind, key, from, to)
}

func TestTruncate(t *testing.T) {
	t.Run("day truncates to UTC midnight", func(t *testing.T) {
		got := Truncate(time.Date(2024, 3, 15, 17, 42, 3, 0, time.UTC), models.WindowDay)

		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("week truncates back to Monday", func(t *testing.T) {
		// 2024-03-15 is a Friday; its ISO week starts Monday 2024-03-11.
		got := Truncate(time.Date(2024, 3, 15, 17, 42, 3, 0, time.UTC), models.WindowWeek)

		assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("sunday belongs to the preceding monday", func(t *testing.T) {
		got := Truncate(time.Date(2024, 3, 17, 1, 0, 0, 0, time.UTC), models.WindowWeek)

		assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("monday is its own week start", func(t *testing.T) {
		got := Truncate(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), models.WindowWeek)

		assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), got)
	})
}

func TestSeries(t *testing.T) {
	asOf := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("gap-fills empty buckets and computes growth", func(t *testing.T) {
		source := &mockTrendSource{
			seriesFn: func(_ context.Context, _ models.Window, keyKind, key string, from, to time.Time) ([]repository.TrendBucket, error) {
				assert.Equal(t, KeyKindCategory, keyKind)
				assert.Equal(t, "technical", key)
				assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), from)
				assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), to)

				return []repository.TrendBucket{
					{WindowStart: time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), Frequency: 4, AvgSentiment: -0.2},
					{WindowStart: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), Frequency: 6, AvgSentiment: -0.5},
					{WindowStart: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Frequency: 3, AvgSentiment: 0.1},
				}, nil
			},
		}
		svc := NewService(source, nil)

		series, err := svc.Series(context.Background(), models.WindowDay, KeyKindCategory, "technical", 4, asOf)

		require.NoError(t, err)
		require.Len(t, series, 4)

		// Bucket 0: first bucket, growth unknown.
		assert.Equal(t, 4, series[0].Frequency)
		require.NotNil(t, series[0].AvgSentiment)
		assert.InDelta(t, -0.2, *series[0].AvgSentiment, 1e-9)
		assert.Nil(t, series[0].GrowthRate)

		// Bucket 1: empty, gap-filled.
		assert.Equal(t, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), series[1].WindowStart)
		assert.Zero(t, series[1].Frequency)
		assert.Nil(t, series[1].AvgSentiment)
		require.NotNil(t, series[1].GrowthRate)
		assert.InDelta(t, -1.0, *series[1].GrowthRate, 1e-9)

		// Bucket 2: previous frequency was zero, growth undefined.
		assert.Equal(t, 6, series[2].Frequency)
		assert.Nil(t, series[2].GrowthRate)

		// Bucket 3: 6 -> 3 is a 50% drop.
		assert.Equal(t, 3, series[3].Frequency)
		require.NotNil(t, series[3].GrowthRate)
		assert.InDelta(t, -0.5, *series[3].GrowthRate, 1e-9)
	})

	t.Run("weekly series advances by seven days", func(t *testing.T) {
		var gotFrom, gotTo time.Time
		source := &mockTrendSource{
			seriesFn: func(_ context.Context, _ models.Window, _, _ string, from, to time.Time) ([]repository.TrendBucket, error) {
				gotFrom, gotTo = from, to
				return nil, nil
			},
		}
		svc := NewService(source, nil)

		series, err := svc.Series(context.Background(), models.WindowWeek, KeyKindTheme, "stability", 3, asOf)

		require.NoError(t, err)
		require.Len(t, series, 3)
		assert.Equal(t, time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), gotFrom)
		assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), gotTo)
		assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), series[1].WindowStart)
	})

	t.Run("lowercases and trims the key", func(t *testing.T) {
		var gotKey string
		source := &mockTrendSource{
			seriesFn: func(_ context.Context, _ models.Window, _, key string, _, _ time.Time) ([]repository.TrendBucket, error) {
				gotKey = key
				return nil, nil
			},
		}
		svc := NewService(source, nil)

		_, err := svc.Series(context.Background(), models.WindowDay, KeyKindCategory, "  Billing ", 2, asOf)

		require.NoError(t, err)
		assert.Equal(t, "billing", gotKey)
	})

	t.Run("validation failures", func(t *testing.T) {
		svc := NewService(&mockTrendSource{}, nil)

		_, err := svc.Series(context.Background(), "month", KeyKindCategory, "technical", 4, asOf)
		assert.ErrorIs(t, err, insighterrors.ErrValidation)

		_, err = svc.Series(context.Background(), models.WindowDay, "label", "technical", 4, asOf)
		assert.ErrorIs(t, err, insighterrors.ErrValidation)

		_, err = svc.Series(context.Background(), models.WindowDay, KeyKindCategory, "  ", 4, asOf)
		assert.ErrorIs(t, err, insighterrors.ErrValidation)

		_, err = svc.Series(context.Background(), models.WindowDay, KeyKindCategory, "technical", maxBuckets+1, asOf)
		assert.ErrorIs(t, err, insighterrors.ErrValidation)
	})

	t.Run("source failure propagates", func(t *testing.T) {
		source := &mockTrendSource{
			seriesFn: func(_ context.Context, _ models.Window, _, _ string, _, _ time.Time) ([]repository.TrendBucket, error) {
				return nil, errors.New("db down")
			},
		}
		svc := NewService(source, nil)

		series, err := svc.Series(context.Background(), models.WindowDay, KeyKindCategory, "technical", 4, asOf)

		assert.Nil(t, series)
		assert.Error(t, err)
	})
}
