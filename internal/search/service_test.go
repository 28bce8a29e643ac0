package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insighthub/engine/internal/insighterrors"
	"github.com/insighthub/engine/internal/models"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
	dims    int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFn(ctx, text)
}

func (m *mockEmbedder) Dimensions() int { return m.dims }

type mockSearcher struct {
	nearestFn func(ctx context.Context, queryEmbedding []float32, limit int) ([]models.SearchMatch, error)
}

func (m *mockSearcher) NearestInsights(ctx context.Context, queryEmbedding []float32, limit int) ([]models.SearchMatch, error) {
	return m.nearestFn(ctx, queryEmbedding, limit)
}

type mockPatterns struct {
	bestFn func(ctx context.Context, category string) (*models.ResolutionPattern, error)
}

func (m *mockPatterns) BestByCategory(ctx context.Context, category string) (*models.ResolutionPattern, error) {
	return m.bestFn(ctx, category)
}

func fixedEmbedder(vec []float32) *mockEmbedder {
	return &mockEmbedder{
		dims: len(vec),
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return vec, nil
		},
	}
}

func TestSimilarFeedback(t *testing.T) {
	t.Run("returns ranked matches with resolution enrichment", func(t *testing.T) {
		searcher := &mockSearcher{
			nearestFn: func(_ context.Context, _ []float32, limit int) ([]models.SearchMatch, error) {
				assert.Equal(t, 2, limit)
				return []models.SearchMatch{
					{FeedbackID: "feedback_001", Distance: 0.1, Summary: "app crash", Categories: []string{"technical"}},
					{FeedbackID: "feedback_003", Distance: 0.6, Summary: "double charge", Categories: []string{"billing"}},
				}, nil
			},
		}
		patterns := &mockPatterns{
			bestFn: func(_ context.Context, category string) (*models.ResolutionPattern, error) {
				if category == "technical" {
					return &models.ResolutionPattern{
						PatternID:        "pattern_001",
						IssueCategory:    "technical",
						CommonResolution: "reinstall the app",
						SuccessRate:      0.9,
						CreatedAt:        time.Now(),
					}, nil
				}
				return nil, nil
			},
		}

		svc, err := NewService(fixedEmbedder([]float32{1, 0}), searcher, patterns)
		require.NoError(t, err)

		matches, err := svc.SimilarFeedback(context.Background(), "crash on startup", 2)

		require.NoError(t, err)
		require.Len(t, matches, 2)
		require.NotNil(t, matches[0].SuggestedResolution)
		assert.Equal(t, "reinstall the app", matches[0].SuggestedResolution.CommonResolution)
		assert.Nil(t, matches[1].SuggestedResolution)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		svc, err := NewService(fixedEmbedder([]float32{1}), nil, nil)
		require.NoError(t, err)

		matches, err := svc.SimilarFeedback(context.Background(), "   ", 5)

		assert.Nil(t, matches)
		assert.ErrorIs(t, err, insighterrors.ErrValidation)
	})

	t.Run("defaults and caps the limit", func(t *testing.T) {
		var gotLimit int
		searcher := &mockSearcher{
			nearestFn: func(_ context.Context, _ []float32, limit int) ([]models.SearchMatch, error) {
				gotLimit = limit
				return nil, nil
			},
		}
		svc, err := NewService(fixedEmbedder([]float32{1}), searcher, &mockPatterns{})
		require.NoError(t, err)

		_, err = svc.SimilarFeedback(context.Background(), "query", 0)
		require.NoError(t, err)
		assert.Equal(t, defaultLimit, gotLimit)

		_, err = svc.SimilarFeedback(context.Background(), "query", 500)
		require.NoError(t, err)
		assert.Equal(t, maxLimit, gotLimit)
	})

	t.Run("caches the query embedding", func(t *testing.T) {
		var calls atomic.Int64
		embedder := &mockEmbedder{
			dims: 2,
			embedFn: func(_ context.Context, _ string) ([]float32, error) {
				calls.Add(1)
				return []float32{1, 0}, nil
			},
		}
		searcher := &mockSearcher{
			nearestFn: func(_ context.Context, _ []float32, _ int) ([]models.SearchMatch, error) {
				return nil, nil
			},
		}
		svc, err := NewService(embedder, searcher, &mockPatterns{})
		require.NoError(t, err)

		for range 3 {
			_, err := svc.SimilarFeedback(context.Background(), "same query", 5)
			require.NoError(t, err)
		}

		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("embedding outage maps to capability unavailable", func(t *testing.T) {
		embedder := &mockEmbedder{
			dims: 2,
			embedFn: func(_ context.Context, _ string) ([]float32, error) {
				return nil, errors.New("connection refused")
			},
		}
		svc, err := NewService(embedder, nil, nil)
		require.NoError(t, err)

		matches, err := svc.SimilarFeedback(context.Background(), "query", 5)

		assert.Nil(t, matches)
		assert.ErrorIs(t, err, insighterrors.ErrCapabilityUnavailable)
	})

	t.Run("pattern lookup failure degrades enrichment only", func(t *testing.T) {
		searcher := &mockSearcher{
			nearestFn: func(_ context.Context, _ []float32, _ int) ([]models.SearchMatch, error) {
				return []models.SearchMatch{
					{FeedbackID: "feedback_001", Distance: 0.2, Categories: []string{"technical"}},
				}, nil
			},
		}
		patterns := &mockPatterns{
			bestFn: func(_ context.Context, _ string) (*models.ResolutionPattern, error) {
				return nil, errors.New("db down")
			},
		}
		svc, err := NewService(fixedEmbedder([]float32{1}), searcher, patterns)
		require.NoError(t, err)

		matches, err := svc.SimilarFeedback(context.Background(), "query", 5)

		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Nil(t, matches[0].SuggestedResolution)
	})
}
