package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/insighthub/engine/internal/api/response"
)

// healthCheckTimeout bounds the store ping so a hung database cannot stall
// load-balancer probes.
const healthCheckTimeout = 2 * time.Second

// Pinger reports whether the backing store is reachable. *pgxpool.Pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	store Pinger
}

// NewHealthHandler creates a new health handler. store may be nil, in which
// case the check only reports process liveness.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Check handles GET /health. A failing store ping returns 503 so traffic is
// routed away from an instance that lost its database.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := h.store.Ping(ctx); err != nil {
			slog.ErrorContext(ctx, "health check: database unreachable", "error", err)
			response.RespondServiceUnavailable(w, "database unreachable")

			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health check response", "error", err)
	}
}
