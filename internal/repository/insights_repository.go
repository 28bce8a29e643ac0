package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/insighthub/engine/internal/insighterrors"
	"github.com/insighthub/engine/internal/models"
)

// ErrAlreadyProcessed is returned when committing an insight for a feedback
// item that already has one. The existing insight is left untouched.
var ErrAlreadyProcessed = errors.New("feedback already processed")

// InsightsRepository handles data access for the feedback_insights table.
type InsightsRepository struct {
	db *pgxpool.Pool
	// dimensions is the fixed vector length of the embedding column.
	dimensions int
}

// NewInsightsRepository creates a new insights repository. dimensions must
// match the vector column width of feedback_insights.embedding.
func NewInsightsRepository(db *pgxpool.Pool, dimensions int) *InsightsRepository {
	return &InsightsRepository{db: db, dimensions: dimensions}
}

// CommitInsight stores the insight and flips the feedback item's processed
// flag in one transaction, so an item is never marked processed without its
// insight nor the other way around. Committing against an already-processed
// item returns ErrAlreadyProcessed without touching the stored insight.
func (r *InsightsRepository) CommitInsight(ctx context.Context, insight *models.Insight) error {
	var vec *pgvector.Vector

	if insight.Embedding != nil {
		if len(insight.Embedding) != r.dimensions {
			return insighterrors.NewDimensionMismatchError(len(insight.Embedding), r.dimensions)
		}

		v := pgvector.NewVector(insight.Embedding)
		vec = &v
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("commit insight begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO feedback_insights
			(feedback_id, sentiment_score, urgency_level, categories, themes, summary, action_items, degraded, embedding, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (feedback_id) DO NOTHING`,
		insight.FeedbackID, insight.SentimentScore, insight.UrgencyLevel, insight.Categories,
		insight.Themes, insight.Summary, insight.ActionItems, insight.Degraded, vec, insight.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAlreadyProcessed
	}

	tag, err = tx.Exec(ctx,
		`UPDATE customer_feedback SET processed = TRUE WHERE feedback_id = $1`,
		insight.FeedbackID,
	)
	if err != nil {
		return fmt.Errorf("mark feedback processed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return insighterrors.NewNotFoundError("feedback", fmt.Sprintf("feedback %s not found", insight.FeedbackID))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insight: %w", err)
	}

	return nil
}

// GetByFeedbackID returns the stored insight for the given feedback item.
// Embedding is nil when the embedding step degraded at annotation time.
func (r *InsightsRepository) GetByFeedbackID(ctx context.Context, feedbackID string) (*models.Insight, error) {
	var (
		insight models.Insight
		vec     *pgvector.Vector
	)

	err := r.db.QueryRow(ctx, `
		SELECT feedback_id, sentiment_score, urgency_level, categories, themes, summary, action_items, degraded, embedding, processed_at
		FROM feedback_insights
		WHERE feedback_id = $1`,
		feedbackID,
	).Scan(
		&insight.FeedbackID, &insight.SentimentScore, &insight.UrgencyLevel, &insight.Categories,
		&insight.Themes, &insight.Summary, &insight.ActionItems, &insight.Degraded, &vec, &insight.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, insighterrors.NewNotFoundError("insight", fmt.Sprintf("insight for feedback %s not found", feedbackID))
		}

		return nil, fmt.Errorf("get insight: %w", err)
	}

	if vec != nil {
		insight.Embedding = vec.Slice()
	}

	return &insight, nil
}

// NearestInsights returns up to limit insights ranked by cosine distance to
// queryEmbedding, nearest first. Insights without an embedding are excluded.
// Equal distances break ties by feedback_id so rankings are deterministic.
func (r *InsightsRepository) NearestInsights(
	ctx context.Context, queryEmbedding []float32, limit int,
) ([]models.SearchMatch, error) {
	if len(queryEmbedding) != r.dimensions {
		return nil, insighterrors.NewDimensionMismatchError(len(queryEmbedding), r.dimensions)
	}

	queryVec := pgvector.NewVector(queryEmbedding)

	rows, err := r.db.Query(ctx, `
		SELECT feedback_id, (embedding <=> $1) AS distance, summary, categories
		FROM feedback_insights
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1 ASC, feedback_id ASC
		LIMIT $2`,
		queryVec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("nearest insights: %w", err)
	}
	defer rows.Close()

	var matches []models.SearchMatch

	for rows.Next() {
		var match models.SearchMatch
		if err := rows.Scan(&match.FeedbackID, &match.Distance, &match.Summary, &match.Categories); err != nil {
			return nil, fmt.Errorf("scan search match: %w", err)
		}

		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nearest insights: %w", err)
	}

	return matches, nil
}

// TrendBucket is one non-empty aggregation bucket as stored. The trends
// service gap-fills empty buckets on top of these.
type TrendBucket struct {
	WindowStart  time.Time
	Frequency    int
	AvgSentiment float64
}

// TrendSeries returns per-bucket frequency and average sentiment for insights
// whose categories (keyKind "category") or themes (keyKind "theme") contain
// key, bucketed by date_trunc over the feedback timestamp in UTC. Only
// non-empty buckets are returned, ordered by bucket start.
func (r *InsightsRepository) TrendSeries(
	ctx context.Context, window models.Window, keyKind, key string, from, to time.Time,
) ([]TrendBucket, error) {
	column := "i.categories"
	if keyKind == "theme" {
		column = "i.themes"
	}

	query := fmt.Sprintf(`
		SELECT date_trunc($1, f."timestamp" AT TIME ZONE 'UTC') AS bucket,
		       COUNT(*) AS frequency,
		       AVG(i.sentiment_score) AS avg_sentiment
		FROM feedback_insights i
		INNER JOIN customer_feedback f ON f.feedback_id = i.feedback_id
		WHERE $2 = ANY(%s) AND f."timestamp" >= $3 AND f."timestamp" < $4
		GROUP BY bucket
		ORDER BY bucket ASC`, column)

	rows, err := r.db.Query(ctx, query, string(window), key, from, to)
	if err != nil {
		return nil, fmt.Errorf("trend series: %w", err)
	}
	defer rows.Close()

	var buckets []TrendBucket

	for rows.Next() {
		var b TrendBucket
		if err := rows.Scan(&b.WindowStart, &b.Frequency, &b.AvgSentiment); err != nil {
			return nil, fmt.Errorf("scan trend bucket: %w", err)
		}

		b.WindowStart = b.WindowStart.UTC()
		buckets = append(buckets, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trend buckets: %w", err)
	}

	return buckets, nil
}

const (
	topCategoriesLimit     = 3
	topThemesLimit         = 3
	criticalSummariesLimit = 3
)

// DailyStats aggregates the processed insights for one UTC calendar day.
// A day with no processed feedback returns zero counts, not an error.
func (r *InsightsRepository) DailyStats(ctx context.Context, day time.Time) (*models.DailyStats, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	stats := &models.DailyStats{Day: dayStart}

	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE i.urgency_level = 'critical'),
		       AVG(i.sentiment_score)
		FROM feedback_insights i
		INNER JOIN customer_feedback f ON f.feedback_id = i.feedback_id
		WHERE f."timestamp" >= $1 AND f."timestamp" < $2`,
		dayStart, dayEnd,
	).Scan(&stats.TotalFeedback, &stats.CriticalCount, &stats.AvgSentiment)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}

	if stats.TotalFeedback == 0 {
		return stats, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT c AS category, COUNT(*) AS cnt
		FROM feedback_insights i
		INNER JOIN customer_feedback f ON f.feedback_id = i.feedback_id
		CROSS JOIN LATERAL unnest(i.categories) AS c
		WHERE f."timestamp" >= $1 AND f."timestamp" < $2
		GROUP BY c
		ORDER BY cnt DESC, c ASC
		LIMIT $3`,
		dayStart, dayEnd, topCategoriesLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("daily top categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cc models.CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}

		stats.TopCategories = append(stats.TopCategories, cc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating top categories: %w", err)
	}

	themeRows, err := r.db.Query(ctx, `
		SELECT th AS theme, COUNT(*) AS cnt
		FROM feedback_insights i
		INNER JOIN customer_feedback f ON f.feedback_id = i.feedback_id
		CROSS JOIN LATERAL unnest(i.themes) AS th
		WHERE f."timestamp" >= $1 AND f."timestamp" < $2
		GROUP BY th
		ORDER BY cnt DESC, th ASC
		LIMIT $3`,
		dayStart, dayEnd, topThemesLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("daily top themes: %w", err)
	}
	defer themeRows.Close()

	for themeRows.Next() {
		var theme string
		var cnt int
		if err := themeRows.Scan(&theme, &cnt); err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}

		stats.TopThemes = append(stats.TopThemes, theme)
	}

	if err := themeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating top themes: %w", err)
	}

	critRows, err := r.db.Query(ctx, `
		SELECT i.summary
		FROM feedback_insights i
		INNER JOIN customer_feedback f ON f.feedback_id = i.feedback_id
		WHERE i.urgency_level = 'critical' AND f."timestamp" >= $1 AND f."timestamp" < $2
		ORDER BY f."timestamp" ASC, i.feedback_id ASC
		LIMIT $3`,
		dayStart, dayEnd, criticalSummariesLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("daily critical summaries: %w", err)
	}
	defer critRows.Close()

	for critRows.Next() {
		var summary string
		if err := critRows.Scan(&summary); err != nil {
			return nil, fmt.Errorf("scan critical summary: %w", err)
		}

		stats.CriticalSummaries = append(stats.CriticalSummaries, summary)
	}

	if err := critRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating critical summaries: %w", err)
	}

	return stats, nil
}
