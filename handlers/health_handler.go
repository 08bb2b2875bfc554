package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const readinessTimeout = 3 * time.Second

// Pinger - зависимость, без которой сервис не готов принимать запросы.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "ok"}, nil); err != nil {
		slog.ErrorContext(r.Context(), "Error writing liveness response", slog.Any("error", err))
	}
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		slog.WarnContext(r.Context(), "Readiness check failed", slog.Any("error", err))
		unavailableResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "ready"}, nil); err != nil {
		slog.ErrorContext(r.Context(), "Error writing readiness response", slog.Any("error", err))
	}
}
