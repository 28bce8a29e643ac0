// Package search finds stored insights similar to a free-text query and
// enriches matches with known resolution patterns.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/insighthub/engine/internal/capability"
	"github.com/insighthub/engine/internal/insighterrors"
	"github.com/insighthub/engine/internal/models"
	"github.com/insighthub/engine/pkg/cache"
)

const (
	defaultLimit     = 5
	maxLimit         = 50
	defaultCacheSize = 512
)

// InsightSearcher ranks stored insights by cosine distance to a query vector.
type InsightSearcher interface {
	NearestInsights(ctx context.Context, queryEmbedding []float32, limit int) ([]models.SearchMatch, error)
}

// PatternProvider looks up the best known resolution for a category.
type PatternProvider interface {
	BestByCategory(ctx context.Context, category string) (*models.ResolutionPattern, error)
}

// Service answers similarity-search queries. Query embeddings are cached in
// an LRU keyed by the exact query text, with concurrent misses for the same
// query coalesced into a single embedding call.
type Service struct {
	embedder capability.Embedder
	insights InsightSearcher
	patterns PatternProvider
	cache    *cache.LoaderCache[string, []float32]
	logger   *slog.Logger
}

// ServiceOption configures the Service.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	cacheSize int
	logger    *slog.Logger
}

// WithCacheSize sets the query-embedding LRU capacity.
func WithCacheSize(n int) ServiceOption {
	return func(c *serviceConfig) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// WithLogger sets the service's logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

// NewService creates a search service.
func NewService(embedder capability.Embedder, insights InsightSearcher, patterns PatternProvider, opts ...ServiceOption) (*Service, error) {
	cfg := &serviceConfig{
		cacheSize: defaultCacheSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	embeddingCache, err := cache.NewLoaderCache[string, []float32](cfg.cacheSize, func(query string) string {
		return query
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &Service{
		embedder: embedder,
		insights: insights,
		patterns: patterns,
		cache:    embeddingCache,
		logger:   cfg.logger,
	}, nil
}

// SimilarFeedback returns up to limit insights nearest to the query text,
// most similar first. Matches whose leading category has a known resolution
// pattern carry the best one; pattern lookup failures degrade the enrichment,
// never the search.
func (s *Service) SimilarFeedback(ctx context.Context, query string, limit int) ([]models.SearchMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, insighterrors.NewValidationError("query", "query cannot be empty")
	}

	if limit <= 0 {
		limit = defaultLimit
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	embedding, err := s.queryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.insights.NearestInsights(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	for i := range matches {
		s.attachResolution(ctx, &matches[i])
	}

	return matches, nil
}

func (s *Service) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	vec, err := s.cache.Get(ctx, query, func(ctx context.Context, query string) ([]float32, error) {
		return s.embedder.Embed(ctx, query)
	})
	if err != nil {
		if errors.Is(err, insighterrors.ErrDimensionMismatch) {
			return nil, err
		}

		return nil, insighterrors.NewCapabilityUnavailableError("embedding", err)
	}

	return vec, nil
}

func (s *Service) attachResolution(ctx context.Context, match *models.SearchMatch) {
	if len(match.Categories) == 0 || match.Categories[0] == "other" {
		return
	}

	pattern, err := s.patterns.BestByCategory(ctx, match.Categories[0])
	if err != nil {
		s.logger.WarnContext(ctx, "resolution pattern lookup failed",
			"feedback_id", match.FeedbackID, "category", match.Categories[0], "error", err)

		return
	}

	match.SuggestedResolution = pattern
}
