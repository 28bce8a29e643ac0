package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/insighthub/engine/internal/api/response"
	"github.com/insighthub/engine/internal/models"
)

// BatchRunner defines the interface for executing one processing run.
type BatchRunner interface {
	Run(ctx context.Context, batchSize int) (*models.RunReport, error)
}

// ProcessingHandler handles HTTP requests for processing runs.
type ProcessingHandler struct {
	runner           BatchRunner
	defaultBatchSize int
}

// NewProcessingHandler creates a new processing handler.
func NewProcessingHandler(runner BatchRunner, defaultBatchSize int) *ProcessingHandler {
	if defaultBatchSize <= 0 {
		defaultBatchSize = 50
	}

	return &ProcessingHandler{runner: runner, defaultBatchSize: defaultBatchSize}
}

// RunRequest is the optional body for POST /v1/processing/runs.
type RunRequest struct {
	BatchSize int `json:"batch_size"`
}

const maxBatchSize = 500

// Run handles POST /v1/processing/runs. The run is synchronous; the response
// carries the per-item outcome counts.
func (h *ProcessingHandler) Run(w http.ResponseWriter, r *http.Request) {
	batchSize := h.defaultBatchSize

	var req RunRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if req.BatchSize < 0 || req.BatchSize > maxBatchSize {
		response.RespondBadRequest(w, "batch_size must be between 1 and 500")
		return
	}

	if req.BatchSize > 0 {
		batchSize = req.BatchSize
	}

	report, err := h.runner.Run(r.Context(), batchSize)
	if err != nil {
		response.RespondFromError(w, err, "Processing run failed")
		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}
