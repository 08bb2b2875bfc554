package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-timer/live"
	"github.com/Dosada05/tournament-timer/services"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// MessageTypeTimerState - первое сообщение клиенту с текущим документом турнира.
const MessageTypeTimerState = "TIMER_STATE"

var errHubStopped = errors.New("server is shutting down")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Клиенты только читают публичное состояние таймера, Origin не ограничиваем.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub          *live.Hub
	timerService services.TimerService
}

func NewWebSocketHandler(hub *live.Hub, ts services.TimerService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		timerService: ts,
	}
}

// ServeWs подписывает клиента на обновления таймера турнира.
// Клиент должен подключаться к /ws/{tournament}
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	room, ok := services.SanitiseName(chi.URLParam(r, "tournament"))
	if !ok {
		badRequestResponse(w, r, services.ErrTournamentRequired)
		return
	}

	// Подписка раньше чтения: обновления после чтения состояния уйдут следом за ним.
	client := live.NewClient(h.hub, room)
	if !client.Join() {
		unavailableResponse(w, r, errHubStopped)
		return
	}

	initial, err := h.currentState(r, room)
	if err != nil {
		client.Leave()
		mapTimerServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		client.Leave()
		// Upgrade сам отправляет HTTP ошибку клиенту
		slog.WarnContext(r.Context(), "Failed to upgrade WebSocket connection",
			slog.String("tournament", room), slog.Any("error", err))
		return
	}

	client.Start(conn, initial)
	slog.DebugContext(r.Context(), "WebSocket client connected", slog.String("tournament", room))
}

// currentState возвращает сообщение с текущим документом или nil,
// если таймер турнира ещё не сохранялся.
func (h *WebSocketHandler) currentState(r *http.Request, room string) ([]byte, error) {
	document, err := h.timerService.GetRemainingTime(r.Context(), room)
	if errors.Is(err, services.ErrTimerNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(live.Message{
		Type:    MessageTypeTimerState,
		Payload: json.RawMessage(document),
		RoomID:  room,
	})
}
