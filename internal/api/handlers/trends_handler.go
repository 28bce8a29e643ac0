package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/insighthub/engine/internal/api/response"
	"github.com/insighthub/engine/internal/api/validation"
	"github.com/insighthub/engine/internal/models"
	"github.com/insighthub/engine/internal/trends"
)

// TrendsService defines the interface for trend aggregation.
type TrendsService interface {
	Series(ctx context.Context, window models.Window, keyKind, key string, buckets int, asOf time.Time) ([]models.TrendPoint, error)
}

// TrendsHandler handles HTTP requests for trend series.
type TrendsHandler struct {
	service TrendsService
	now     func() time.Time
}

// NewTrendsHandler creates a new trends handler.
func NewTrendsHandler(service TrendsService) *TrendsHandler {
	return &TrendsHandler{service: service, now: time.Now}
}

// TrendsResponse is the response for GET /v1/trends.
type TrendsResponse struct {
	Window  models.Window       `json:"window"`
	KeyKind string              `json:"key_kind"`
	Key     string              `json:"key"`
	Points  []models.TrendPoint `json:"points"`
}

// trendsQuery holds the decoded query parameters for GET /v1/trends.
type trendsQuery struct {
	Window   models.Window `form:"window"   validate:"omitempty,oneof=day week"`
	Category string        `form:"category"`
	Theme    string        `form:"theme"`
	Buckets  int           `form:"buckets"  validate:"omitempty,gt=0"`
	AsOf     *time.Time    `form:"as_of"`
}

// Series handles GET /v1/trends. Exactly one of the category and theme query
// parameters selects the series key; window defaults to day.
func (h *TrendsHandler) Series(w http.ResponseWriter, r *http.Request) {
	var q trendsQuery
	if err := validation.ValidateAndDecodeQueryParams(r, &q); err != nil {
		response.RespondBadRequest(w, err.Error())
		return
	}

	window := q.Window
	if window == "" {
		window = models.WindowDay
	}

	if (q.Category == "") == (q.Theme == "") {
		response.RespondBadRequest(w, "exactly one of category or theme is required")
		return
	}

	keyKind, key := trends.KeyKindCategory, q.Category
	if q.Theme != "" {
		keyKind, key = trends.KeyKindTheme, q.Theme
	}

	asOf := h.now().UTC()
	if q.AsOf != nil {
		asOf = q.AsOf.UTC()
	}

	points, err := h.service.Series(r.Context(), window, keyKind, key, q.Buckets, asOf)
	if err != nil {
		response.RespondFromError(w, err, "Trend aggregation failed")
		return
	}

	response.RespondJSON(w, http.StatusOK, TrendsResponse{
		Window:  window,
		KeyKind: keyKind,
		Key:     key,
		Points:  points,
	})
}
