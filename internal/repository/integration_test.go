package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/insighthub/engine/internal/insighterrors"
	"github.com/insighthub/engine/internal/models"
	"github.com/insighthub/engine/pkg/database"
)

// testDimensions keeps test vectors small; the migration's production width
// is swapped out before it is applied.
const testDimensions = 8

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "pgvector/pgvector:pg16",
		tcpostgres.WithDatabase("insights_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("could not start postgres container (docker unavailable?): %v", err)
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := database.NewPostgresPool(ctx, connStr, database.WithPgvector())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_init.sql"))
	require.NoError(t, err)

	migration := strings.ReplaceAll(string(schema), "vector(1536)", "vector(8)")

	_, err = pool.Exec(ctx, migration)
	require.NoError(t, err)

	return pool
}

func testVector(fill float32) []float32 {
	vec := make([]float32, testDimensions)
	for i := range vec {
		vec[i] = fill
	}

	vec[0] = 1

	return vec
}

func insertFeedback(t *testing.T, repo *FeedbackRepository, id string, ts time.Time) {
	t.Helper()

	err := repo.Insert(context.Background(), &models.FeedbackItem{
		FeedbackID: id,
		CustomerID: "customer_123",
		Channel:    models.ChannelEmail,
		Timestamp:  ts,
		RawText:    "The app keeps crashing on startup.",
	})
	require.NoError(t, err)
}

func TestFeedbackRepositoryIntegration(t *testing.T) {
	pool := newTestPool(t)
	repo := NewFeedbackRepository(pool)
	ctx := context.Background()

	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("insert and get round-trip", func(t *testing.T) {
		item := &models.FeedbackItem{
			FeedbackID: "feedback_001",
			CustomerID: "customer_123",
			Channel:    models.ChannelTicket,
			Timestamp:  base,
			RawText:    "Billing seems off, I was charged twice.",
			Metadata:   []byte(`{"product_area":"billing"}`),
		}
		require.NoError(t, repo.Insert(ctx, item))

		got, err := repo.GetByID(ctx, "feedback_001")
		require.NoError(t, err)
		assert.Equal(t, models.ChannelTicket, got.Channel)
		assert.Equal(t, base, got.Timestamp.UTC())
		assert.JSONEq(t, `{"product_area":"billing"}`, string(got.Metadata))
		assert.False(t, got.Processed)
	})

	t.Run("duplicate id is a conflict", func(t *testing.T) {
		err := repo.Insert(ctx, &models.FeedbackItem{
			FeedbackID: "feedback_001",
			CustomerID: "customer_999",
			Channel:    models.ChannelEmail,
			Timestamp:  base,
			RawText:    "different text, same id",
		})
		require.ErrorIs(t, err, insighterrors.ErrConflict)

		got, err := repo.GetByID(ctx, "feedback_001")
		require.NoError(t, err)
		assert.Equal(t, "customer_123", got.CustomerID)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, insighterrors.ErrNotFound)
	})

	t.Run("list unprocessed is oldest first", func(t *testing.T) {
		insertFeedback(t, repo, "feedback_003", base.Add(2*time.Hour))
		insertFeedback(t, repo, "feedback_002", base.Add(time.Hour))

		items, err := repo.ListUnprocessed(ctx, 10)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "feedback_001", items[0].FeedbackID)
		assert.Equal(t, "feedback_002", items[1].FeedbackID)
		assert.Equal(t, "feedback_003", items[2].FeedbackID)

		limited, err := repo.ListUnprocessed(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("reset of unknown id is not found", func(t *testing.T) {
		err := repo.Reset(ctx, "missing")
		assert.ErrorIs(t, err, insighterrors.ErrNotFound)
	})
}

func TestInsightsRepositoryIntegration(t *testing.T) {
	pool := newTestPool(t)
	feedbackRepo := NewFeedbackRepository(pool)
	repo := NewInsightsRepository(pool, testDimensions)
	ctx := context.Background()

	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	insertFeedback(t, feedbackRepo, "feedback_001", base)
	insertFeedback(t, feedbackRepo, "feedback_002", base.Add(time.Hour))

	newInsight := func(id string, vec []float32) *models.Insight {
		return &models.Insight{
			FeedbackID:     id,
			SentimentScore: -0.4,
			UrgencyLevel:   models.UrgencyCritical,
			Categories:     []string{"technical"},
			Themes:         []string{"mobile app"},
			Summary:        "App crashes on startup.",
			ActionItems:    []string{"escalate to engineering"},
			Degraded:       []string{},
			Embedding:      vec,
			ProcessedAt:    base.Add(time.Minute),
		}
	}

	t.Run("commit flips processed and stores the insight", func(t *testing.T) {
		require.NoError(t, repo.CommitInsight(ctx, newInsight("feedback_001", testVector(0.1))))

		item, err := feedbackRepo.GetByID(ctx, "feedback_001")
		require.NoError(t, err)
		assert.True(t, item.Processed)

		got, err := repo.GetByFeedbackID(ctx, "feedback_001")
		require.NoError(t, err)
		assert.Equal(t, models.UrgencyCritical, got.UrgencyLevel)
		assert.Equal(t, []string{"technical"}, got.Categories)
		assert.Len(t, got.Embedding, testDimensions)
	})

	t.Run("second commit is rejected and changes nothing", func(t *testing.T) {
		dup := newInsight("feedback_001", testVector(0.9))
		dup.Summary = "overwrite attempt"

		require.ErrorIs(t, repo.CommitInsight(ctx, dup), ErrAlreadyProcessed)

		got, err := repo.GetByFeedbackID(ctx, "feedback_001")
		require.NoError(t, err)
		assert.Equal(t, "App crashes on startup.", got.Summary)
	})

	t.Run("wrong embedding width is rejected before any write", func(t *testing.T) {
		bad := newInsight("feedback_002", []float32{1, 2, 3})

		require.ErrorIs(t, repo.CommitInsight(ctx, bad), insighterrors.ErrDimensionMismatch)

		item, err := feedbackRepo.GetByID(ctx, "feedback_002")
		require.NoError(t, err)
		assert.False(t, item.Processed)
	})

	t.Run("nil embedding commits and round-trips as nil", func(t *testing.T) {
		degraded := newInsight("feedback_002", nil)
		degraded.Degraded = []string{models.DegradedEmbedding}
		require.NoError(t, repo.CommitInsight(ctx, degraded))

		got, err := repo.GetByFeedbackID(ctx, "feedback_002")
		require.NoError(t, err)
		assert.Nil(t, got.Embedding)
		assert.Equal(t, []string{models.DegradedEmbedding}, got.Degraded)
	})

	t.Run("nearest insights excludes items without an embedding", func(t *testing.T) {
		matches, err := repo.NearestInsights(ctx, testVector(0.1), 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "feedback_001", matches[0].FeedbackID)
		assert.InDelta(t, 0, matches[0].Distance, 1e-6)
	})

	t.Run("reset removes the insight and reopens the item", func(t *testing.T) {
		require.NoError(t, feedbackRepo.Reset(ctx, "feedback_001"))

		_, err := repo.GetByFeedbackID(ctx, "feedback_001")
		assert.ErrorIs(t, err, insighterrors.ErrNotFound)

		items, err := feedbackRepo.ListUnprocessed(ctx, 10)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "feedback_001", items[0].FeedbackID)
	})
}

func TestInsightsRepositoryAggregationIntegration(t *testing.T) {
	pool := newTestPool(t)
	feedbackRepo := NewFeedbackRepository(pool)
	repo := NewInsightsRepository(pool, testDimensions)
	ctx := context.Background()

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	commit := func(id string, ts time.Time, sentiment float64, urgency models.Urgency, categories, themes []string) {
		t.Helper()
		insertFeedback(t, feedbackRepo, id, ts)
		require.NoError(t, repo.CommitInsight(ctx, &models.Insight{
			FeedbackID:     id,
			SentimentScore: sentiment,
			UrgencyLevel:   urgency,
			Categories:     categories,
			Themes:         themes,
			Summary:        "summary for " + id,
			ActionItems:    []string{},
			Degraded:       []string{},
			ProcessedAt:    ts,
		}))
	}

	commit("feedback_001", day.Add(9*time.Hour), -0.6, models.UrgencyCritical, []string{"technical"}, []string{"crashes"})
	commit("feedback_002", day.Add(11*time.Hour), -0.2, models.UrgencyMedium, []string{"technical", "billing"}, []string{"crashes"})
	commit("feedback_003", day.AddDate(0, 0, 2), 0.8, models.UrgencyLow, []string{"technical"}, []string{"design"})

	t.Run("trend series buckets by UTC day", func(t *testing.T) {
		buckets, err := repo.TrendSeries(ctx, models.WindowDay, "category", "technical", day, day.AddDate(0, 0, 7))
		require.NoError(t, err)
		require.Len(t, buckets, 2)

		assert.Equal(t, day, buckets[0].WindowStart)
		assert.Equal(t, 2, buckets[0].Frequency)
		assert.InDelta(t, -0.4, buckets[0].AvgSentiment, 1e-6)

		assert.Equal(t, day.AddDate(0, 0, 2), buckets[1].WindowStart)
		assert.Equal(t, 1, buckets[1].Frequency)
	})

	t.Run("theme key kind matches themes instead of categories", func(t *testing.T) {
		buckets, err := repo.TrendSeries(ctx, models.WindowDay, "theme", "crashes", day, day.AddDate(0, 0, 7))
		require.NoError(t, err)
		require.Len(t, buckets, 1)
		assert.Equal(t, 2, buckets[0].Frequency)
	})

	t.Run("daily stats aggregate one day only", func(t *testing.T) {
		stats, err := repo.DailyStats(ctx, day)
		require.NoError(t, err)

		assert.Equal(t, 2, stats.TotalFeedback)
		assert.Equal(t, 1, stats.CriticalCount)
		require.NotNil(t, stats.AvgSentiment)
		assert.InDelta(t, -0.4, *stats.AvgSentiment, 1e-6)

		require.NotEmpty(t, stats.TopCategories)
		assert.Equal(t, "technical", stats.TopCategories[0].Category)
		assert.Equal(t, 2, stats.TopCategories[0].Count)

		assert.Equal(t, []string{"crashes"}, stats.TopThemes)
		assert.Equal(t, []string{"summary for feedback_001"}, stats.CriticalSummaries)
	})

	t.Run("critical summaries cap at three earliest", func(t *testing.T) {
		crisisDay := day.AddDate(0, 0, 10)
		for i := 1; i <= 4; i++ {
			commit(fmt.Sprintf("feedback_crit_%03d", i), crisisDay.Add(time.Duration(i)*time.Hour),
				-0.9, models.UrgencyCritical, []string{"technical"}, []string{"outage"})
		}

		stats, err := repo.DailyStats(ctx, crisisDay)
		require.NoError(t, err)

		assert.Equal(t, 4, stats.CriticalCount)
		assert.Equal(t, []string{
			"summary for feedback_crit_001",
			"summary for feedback_crit_002",
			"summary for feedback_crit_003",
		}, stats.CriticalSummaries)
	})

	t.Run("empty day has zero counts and no averages", func(t *testing.T) {
		stats, err := repo.DailyStats(ctx, day.AddDate(0, 0, 30))
		require.NoError(t, err)

		assert.Zero(t, stats.TotalFeedback)
		assert.Nil(t, stats.AvgSentiment)
		assert.Empty(t, stats.TopCategories)
	})
}

func TestPatternsRepositoryIntegration(t *testing.T) {
	pool := newTestPool(t)
	repo := NewPatternsRepository(pool)
	ctx := context.Background()

	t.Run("no pattern for category returns nil", func(t *testing.T) {
		pattern, err := repo.BestByCategory(ctx, "technical")
		require.NoError(t, err)
		assert.Nil(t, pattern)
	})

	t.Run("highest success rate wins", func(t *testing.T) {
		_, err := pool.Exec(ctx, `
			INSERT INTO resolution_patterns (pattern_id, issue_category, common_resolution, success_rate, avg_resolution_time_minutes)
			VALUES
				('pattern_001', 'technical', 'Reinstall the app', 0.62, 45),
				('pattern_002', 'technical', 'Clear the local cache', 0.87, 20),
				('pattern_003', 'billing', 'Refund the duplicate charge', 0.95, 120)`)
		require.NoError(t, err)

		pattern, err := repo.BestByCategory(ctx, "technical")
		require.NoError(t, err)
		require.NotNil(t, pattern)
		assert.Equal(t, "pattern_002", pattern.PatternID)
		assert.InDelta(t, 0.87, pattern.SuccessRate, 1e-9)
	})
}
