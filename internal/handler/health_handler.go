package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"card-admin/internal/model"
)

type pinger interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db pinger
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Health(ctx); err != nil {
		slog.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, model.APIResponse{
			Success:   false,
			Code:      http.StatusServiceUnavailable,
			Message:   "database unavailable",
			Data:      map[string]string{"status": "unhealthy"},
			ErrorCode: "UNAVAILABLE",
		})
		return
	}

	writeSuccess(w, http.StatusOK, "ok", map[string]string{"status": "healthy"}, nil)
}
