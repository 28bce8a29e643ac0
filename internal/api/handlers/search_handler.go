package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/insighthub/engine/internal/api/response"
	"github.com/insighthub/engine/internal/models"
)

// SimilarityService defines the interface for similarity search.
type SimilarityService interface {
	SimilarFeedback(ctx context.Context, query string, limit int) ([]models.SearchMatch, error)
}

// SearchHandler handles HTTP requests for similarity search.
type SearchHandler struct {
	service SimilarityService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service SimilarityService) *SearchHandler {
	return &SearchHandler{service: service}
}

// SimilarSearchRequest is the body for POST /v1/search/similar.
type SimilarSearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// SimilarSearchResponse is the response for similarity search.
type SimilarSearchResponse struct {
	Matches []models.SearchMatch `json:"matches"`
}

// Similar handles POST /v1/search/similar.
func (h *SearchHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req SimilarSearchRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	matches, err := h.service.SimilarFeedback(r.Context(), req.Query, req.TopK)
	if err != nil {
		response.RespondFromError(w, err, "Similarity search failed")
		return
	}

	if matches == nil {
		matches = []models.SearchMatch{}
	}

	response.RespondJSON(w, http.StatusOK, SimilarSearchResponse{Matches: matches})
}
