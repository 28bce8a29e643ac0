package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/insighthub/engine/internal/insighterrors"
	"github.com/insighthub/engine/internal/models"
)

type mockSummaryService struct {
	dailyFn func(ctx context.Context, day time.Time) (*models.DailySummary, error)
}

func (m *mockSummaryService) Daily(ctx context.Context, day time.Time) (*models.DailySummary, error) {
	return m.dailyFn(ctx, day)
}

func TestSummaryHandlerDaily(t *testing.T) {
	newMux := func(svc SummaryService) *http.ServeMux {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/summaries/{date}", NewSummaryHandler(svc).Daily)

		return mux
	}

	t.Run("returns the day's summary", func(t *testing.T) {
		svc := &mockSummaryService{
			dailyFn: func(_ context.Context, day time.Time) (*models.DailySummary, error) {
				assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), day)

				return &models.DailySummary{
					Day:       day,
					Stats:     models.DailyStats{Day: day, TotalFeedback: 12, CriticalCount: 2},
					Narrative: "Two critical crash reports dominated the day.",
				}, nil
			},
		}
		mux := newMux(svc)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/summaries/2024-03-15", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "critical crash reports")
	})

	t.Run("rejects malformed date", func(t *testing.T) {
		mux := newMux(&mockSummaryService{})

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/summaries/15-03-2024", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("generator outage is 503", func(t *testing.T) {
		svc := &mockSummaryService{
			dailyFn: func(_ context.Context, _ time.Time) (*models.DailySummary, error) {
				return nil, insighterrors.NewCapabilityUnavailableError("text_generation", errors.New("timeout"))
			},
		}
		mux := newMux(svc)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/summaries/2024-03-15", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
