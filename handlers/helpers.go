package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/Dosada05/tournament-timer/services"
)

type jsonResponse map[string]interface{}

// notFoundBody - фиксированный ответ, когда документ турнира не найден.
var notFoundBody = []byte(`{"error": "This is not the tournament you are looking for"}`)

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return writeRawJSON(w, status, js, headers)
}

// writeRawJSON отдаёт уже сериализованный документ без перекодирования.
func writeRawJSON(w http.ResponseWriter, status int, js []byte, headers http.Header) error {
	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(js)
	return err
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	env := jsonResponse{"error": message}
	if err := writeJSON(w, status, env, nil); err != nil {
		slog.ErrorContext(r.Context(), "Error writing error JSON response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// serverErrorResponse отдаёт клиенту сообщение исходной ошибки хранилища.
func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "Internal server error",
		slog.String("path", r.URL.Path), slog.Any("error", err))
	errorResponse(w, r, http.StatusInternalServerError, err.Error())
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func notFoundResponse(w http.ResponseWriter, r *http.Request) {
	if err := writeRawJSON(w, http.StatusNotFound, notFoundBody, nil); err != nil {
		slog.ErrorContext(r.Context(), "Error writing not found response", slog.Any("error", err))
	}
}

func unavailableResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusServiceUnavailable, err.Error())
}

// mapTimerServiceErrorToHTTP преобразует ошибки сервиса таймеров в HTTP-ответы
func mapTimerServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case services.IsValidationError(err):
		badRequestResponse(w, r, err)

	case errors.Is(err, services.ErrTimerNotFound):
		notFoundResponse(w, r)

	default:
		serverErrorResponse(w, r, err)
	}
}

// readOptionalJSON читает тело запроса как JSON-объект, если клиент прислал
// application/json. Битое, пустое или слишком большое тело трактуется как
// отсутствующее: параметры могут прийти и через query.
func readOptionalJSON(w http.ResponseWriter, r *http.Request, maxBytes int64) services.Source {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !isJSONMediaType(mediaType) {
		return nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		slog.DebugContext(r.Context(), "Ignoring unreadable request body", slog.Any("error", err))
		return nil
	}

	dec := json.NewDecoder(&buf)
	dec.UseNumber()

	var src services.Source
	if err := dec.Decode(&src); err != nil {
		slog.DebugContext(r.Context(), "Ignoring malformed JSON body", slog.Any("error", err))
		return nil
	}
	return src
}

func isJSONMediaType(mediaType string) bool {
	if mediaType == "application/json" {
		return true
	}
	// application/*+json, например application/merge-patch+json
	return strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json")
}
