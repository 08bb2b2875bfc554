package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-timer/middleware"
	"github.com/Dosada05/tournament-timer/models"
	"github.com/Dosada05/tournament-timer/services"
	"github.com/go-chi/chi/v5"
)

const defaultMaxBodyBytes int64 = 1_048_576 // 1MB

type TimerHandler struct {
	timerService services.TimerService
	maxBodyBytes int64
}

func NewTimerHandler(ts services.TimerService, maxBodyBytes int64) *TimerHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &TimerHandler{
		timerService: ts,
		maxBodyBytes: maxBodyBytes,
	}
}

// requestSources возвращает источники параметров в порядке применения:
// JSON-тело, query, затем {tournament} из пути (для REST-алиасов).
func (h *TimerHandler) requestSources(w http.ResponseWriter, r *http.Request) []services.Source {
	sources := []services.Source{
		readOptionalJSON(w, r, h.maxBodyBytes),
		services.SourceFromQuery(r.URL.Query()),
	}
	if tournament := chi.URLParam(r, "tournament"); tournament != "" {
		sources = append(sources, services.Source{models.FieldTournament: tournament})
	}
	return sources
}

// SetRemainingTime сохраняет состояние таймера и возвращает записанный документ.
func (h *TimerHandler) SetRemainingTime(w http.ResponseWriter, r *http.Request) {
	record, err := services.ExtractTimerRecord(h.requestSources(w, r)...)
	if err != nil {
		mapTimerServiceErrorToHTTP(w, r, err)
		return
	}

	document, err := h.timerService.SetRemainingTime(r.Context(), record)
	if err != nil {
		mapTimerServiceErrorToHTTP(w, r, err)
		return
	}

	updatedBy, _ := middleware.GetSubjectFromContext(r.Context())
	slog.InfoContext(r.Context(), "Timer updated",
		slog.String("tournament", record.Key()), slog.String("updated_by", updatedBy))
	if err := writeRawJSON(w, http.StatusOK, document, nil); err != nil {
		slog.ErrorContext(r.Context(), "Error writing timer response", slog.Any("error", err))
	}
}

// GetRemainingTime отдаёт сохранённый документ турнира байт в байт.
func (h *TimerHandler) GetRemainingTime(w http.ResponseWriter, r *http.Request) {
	record, err := services.ExtractTimerRecord(h.requestSources(w, r)...)
	if err != nil {
		mapTimerServiceErrorToHTTP(w, r, err)
		return
	}

	document, err := h.timerService.GetRemainingTime(r.Context(), record.Key())
	if err != nil {
		mapTimerServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeRawJSON(w, http.StatusOK, document, nil); err != nil {
		slog.ErrorContext(r.Context(), "Error writing timer response", slog.Any("error", err))
	}
}
