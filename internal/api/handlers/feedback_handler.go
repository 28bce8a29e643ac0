package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/insighthub/engine/internal/api/response"
	"github.com/insighthub/engine/internal/api/validation"
	"github.com/insighthub/engine/internal/models"
)

// FeedbackStore defines the feedback persistence operations the handler needs.
type FeedbackStore interface {
	Insert(ctx context.Context, item *models.FeedbackItem) error
	GetByID(ctx context.Context, feedbackID string) (*models.FeedbackItem, error)
	Reset(ctx context.Context, feedbackID string) error
}

// InsightStore defines insight reads for the handler.
type InsightStore interface {
	GetByFeedbackID(ctx context.Context, feedbackID string) (*models.Insight, error)
}

// FeedbackHandler handles HTTP requests for feedback ingestion and lookup.
type FeedbackHandler struct {
	feedback FeedbackStore
	insights InsightStore
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(feedback FeedbackStore, insights InsightStore) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback, insights: insights}
}

// Ingest handles POST /v1/feedback.
func (h *FeedbackHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req models.IngestFeedbackRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	req.FeedbackID = strings.TrimSpace(req.FeedbackID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	timestamp := time.Now().UTC()
	if req.Timestamp != nil {
		timestamp = req.Timestamp.UTC()
	}

	item := &models.FeedbackItem{
		FeedbackID: req.FeedbackID,
		CustomerID: req.CustomerID,
		Channel:    req.Channel,
		Timestamp:  timestamp,
		RawText:    req.RawText,
		Metadata:   req.Metadata,
	}

	if err := h.feedback.Insert(r.Context(), item); err != nil {
		response.RespondFromError(w, err, "Failed to ingest feedback")
		return
	}

	response.RespondJSON(w, http.StatusCreated, item)
}

// Get handles GET /v1/feedback/{id}.
func (h *FeedbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		response.RespondBadRequest(w, "Feedback ID is required")
		return
	}

	item, err := h.feedback.GetByID(r.Context(), id)
	if err != nil {
		response.RespondFromError(w, err, "Failed to load feedback")
		return
	}

	response.RespondJSON(w, http.StatusOK, item)
}

// GetInsight handles GET /v1/feedback/{id}/insight.
func (h *FeedbackHandler) GetInsight(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		response.RespondBadRequest(w, "Feedback ID is required")
		return
	}

	insight, err := h.insights.GetByFeedbackID(r.Context(), id)
	if err != nil {
		response.RespondFromError(w, err, "Failed to load insight")
		return
	}

	response.RespondJSON(w, http.StatusOK, insight)
}

// Reset handles POST /v1/feedback/{id}/reset. It removes the stored insight
// and queues the item for re-annotation on the next run.
func (h *FeedbackHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		response.RespondBadRequest(w, "Feedback ID is required")
		return
	}

	if err := h.feedback.Reset(r.Context(), id); err != nil {
		response.RespondFromError(w, err, "Failed to reset feedback")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
