package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insighthub/engine/internal/models"
	"github.com/insighthub/engine/internal/trends"
)

type mockTrendsService struct {
	seriesFn func(ctx context.Context, window models.Window, keyKind, key string, buckets int, asOf time.Time) ([]models.TrendPoint, error)
}

func (m *mockTrendsService) Series(
	ctx context.Context, window models.Window, keyKind, key string, buckets int, asOf time.Time,
) ([]models.TrendPoint, error) {
	return m.seriesFn(ctx, window, keyKind, key, buckets, asOf)
}

func TestTrendsHandlerSeries(t *testing.T) {
	newMux := func(svc TrendsService) *http.ServeMux {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/trends", NewTrendsHandler(svc).Series)

		return mux
	}

	t.Run("category series with explicit window and as_of", func(t *testing.T) {
		svc := &mockTrendsService{
			seriesFn: func(_ context.Context, window models.Window, keyKind, key string, buckets int, asOf time.Time) ([]models.TrendPoint, error) {
				assert.Equal(t, models.WindowWeek, window)
				assert.Equal(t, trends.KeyKindCategory, keyKind)
				assert.Equal(t, "technical", key)
				assert.Equal(t, 6, buckets)
				assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), asOf)

				return []models.TrendPoint{{WindowStart: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), Frequency: 4}}, nil
			},
		}
		mux := newMux(svc)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/v1/trends?window=week&category=technical&buckets=6&as_of=2024-03-15", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"key":"technical"`)
		assert.Contains(t, rec.Body.String(), `"key_kind":"category"`)
	})

	t.Run("theme selects the theme key kind", func(t *testing.T) {
		var gotKind string
		svc := &mockTrendsService{
			seriesFn: func(_ context.Context, _ models.Window, keyKind, _ string, _ int, _ time.Time) ([]models.TrendPoint, error) {
				gotKind = keyKind
				return nil, nil
			},
		}
		mux := newMux(svc)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/trends?theme=stability", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, trends.KeyKindTheme, gotKind)
	})

	t.Run("rejects both or neither key", func(t *testing.T) {
		mux := newMux(&mockTrendsService{})

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/trends", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/trends?category=technical&theme=stability", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed buckets and as_of", func(t *testing.T) {
		mux := newMux(&mockTrendsService{})

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/trends?category=technical&buckets=zero", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/trends?category=technical&as_of=15-03-2024", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
