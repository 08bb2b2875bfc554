package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-timer/live"
	"github.com/Dosada05/tournament-timer/models"
	"github.com/Dosada05/tournament-timer/services"
	"github.com/Dosada05/tournament-timer/storage"
)

// writeAfterRead выполняет запись сразу после чтения состояния для WebSocket-клиента.
type writeAfterRead struct {
	services.TimerService
	once  sync.Once
	write func()
}

func (s *writeAfterRead) GetRemainingTime(ctx context.Context, tournament string) ([]byte, error) {
	document, err := s.TimerService.GetRemainingTime(ctx, tournament)
	s.once.Do(s.write)
	return document, err
}

// startWebSocketServer запускает хаб и сервер с маршрутом /ws/{tournament}.
func startWebSocketServer(t *testing.T, hub *live.Hub, svc services.TimerService) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	r := chi.NewRouter()
	r.Get("/ws/{tournament}", NewWebSocketHandler(hub, svc).ServeWs)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return srv
}

func dialWebSocket(t *testing.T, srv *httptest.Server, tournament string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/"+tournament, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketHandler_StateThenUpdates(t *testing.T) {
	hub := live.NewHub(discardLogger())
	svc := services.NewTimerService(storage.NewMemoryStore(), discardLogger(), hub)
	_, err := svc.SetRemainingTime(context.Background(), mustExtract(t, services.Source{"tournament": "cup", "time_remaining": "60"}))
	require.NoError(t, err)

	srv := startWebSocketServer(t, hub, svc)
	conn := dialWebSocket(t, srv, "cup")

	state := readLiveMessage(t, conn)
	assert.Equal(t, MessageTypeTimerState, state.Type)
	assert.Equal(t, "cup", state.RoomID)
	assert.JSONEq(t,
		`{"tournament":"cup","round":"CurrentRound","finish_time":null,"time_remaining":"60","metadata":null}`,
		string(state.Payload))

	// клиент в комнате уже к моменту отправки состояния
	assert.Equal(t, 1, hub.RoomSize("cup"))

	written, err := svc.SetRemainingTime(context.Background(), mustExtract(t, services.Source{"tournament": "cup", "time_remaining": "30"}))
	require.NoError(t, err)

	update := readLiveMessage(t, conn)
	assert.Equal(t, live.MessageTypeTimerUpdated, update.Type)
	assert.JSONEq(t, string(written), string(update.Payload))
}

func TestWebSocketHandler_WriteDuringConnectIsDelivered(t *testing.T) {
	hub := live.NewHub(discardLogger())
	svc := services.NewTimerService(storage.NewMemoryStore(), discardLogger(), hub)
	_, err := svc.SetRemainingTime(context.Background(), mustExtract(t, services.Source{"tournament": "cup", "time_remaining": "60"}))
	require.NoError(t, err)

	next := mustExtract(t, services.Source{"tournament": "cup", "time_remaining": "30"})
	written := make(chan []byte, 1)
	racing := &writeAfterRead{TimerService: svc}
	racing.write = func() {
		doc, err := svc.SetRemainingTime(context.Background(), next)
		assert.NoError(t, err)
		written <- doc
	}

	srv := startWebSocketServer(t, hub, racing)
	conn := dialWebSocket(t, srv, "cup")

	state := readLiveMessage(t, conn)
	assert.Equal(t, MessageTypeTimerState, state.Type)
	assert.JSONEq(t,
		`{"tournament":"cup","round":"CurrentRound","finish_time":null,"time_remaining":"60","metadata":null}`,
		string(state.Payload))

	update := readLiveMessage(t, conn)
	assert.Equal(t, live.MessageTypeTimerUpdated, update.Type)
	assert.JSONEq(t, string(<-written), string(update.Payload))
}

func TestWebSocketHandler_StateErrorLeavesRoom(t *testing.T) {
	hub := live.NewHub(discardLogger())
	svc := services.NewTimerService(failingStore{err: errors.New("bucket unreachable")}, discardLogger(), hub)
	srv := startWebSocketServer(t, hub, svc)

	resp, err := http.Get(srv.URL + "/ws/cup")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Eventually(t, func() bool { return hub.RoomSize("cup") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_RejectsInvalidTournament(t *testing.T) {
	svc := services.NewTimerService(storage.NewMemoryStore(), discardLogger())
	r := chi.NewRouter()
	r.Get("/ws/{tournament}", NewWebSocketHandler(live.NewHub(discardLogger()), svc).ServeWs)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/%21%21%21", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func mustExtract(t *testing.T, src services.Source) *models.TimerRecord {
	t.Helper()
	record, err := services.ExtractTimerRecord(src)
	require.NoError(t, err)
	return record
}

func readLiveMessage(t *testing.T, conn *websocket.Conn) live.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg live.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}
