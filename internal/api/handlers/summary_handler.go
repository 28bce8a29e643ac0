package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/insighthub/engine/internal/api/response"
	"github.com/insighthub/engine/internal/models"
)

// SummaryService defines the interface for daily summaries.
type SummaryService interface {
	Daily(ctx context.Context, day time.Time) (*models.DailySummary, error)
}

// SummaryHandler handles HTTP requests for daily summaries.
type SummaryHandler struct {
	service SummaryService
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(service SummaryService) *SummaryHandler {
	return &SummaryHandler{service: service}
}

// Daily handles GET /v1/summaries/{date}.
func (h *SummaryHandler) Daily(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse("2006-01-02", r.PathValue("date"))
	if err != nil {
		response.RespondBadRequest(w, "date must be in YYYY-MM-DD format")
		return
	}

	summary, err := h.service.Daily(r.Context(), day)
	if err != nil {
		response.RespondFromError(w, err, "Daily summary failed")
		return
	}

	response.RespondJSON(w, http.StatusOK, summary)
}
