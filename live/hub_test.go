package live

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startHub запускает хаб и WebSocket-сервер, который кладёт клиентов в комнату из query ?room=.
// beforeStart вызывается между Join и Start.
func startHub(t *testing.T, initial []byte, beforeStart func(*Hub)) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := NewClient(hub, r.URL.Query().Get("room"))
		client.Join()
		if beforeStart != nil {
			beforeStart(hub)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			client.Leave()
			return
		}
		client.Start(conn, initial)
	}))

	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?room=" + room
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitForRoomSize(t *testing.T, hub *Hub, room string, size int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.RoomSize(room) == size },
		2*time.Second, 10*time.Millisecond)
}

func TestHub_TimerUpdatedReachesOnlyItsRoom(t *testing.T) {
	hub, srv, _ := startHub(t, nil, nil)

	cup := dial(t, srv, "cup")
	league := dial(t, srv, "league")
	waitForRoomSize(t, hub, "cup", 1)
	waitForRoomSize(t, hub, "league", 1)

	doc := []byte(`{"tournament":"cup","round":"CurrentRound","finish_time":null,"time_remaining":"10","metadata":null}`)
	require.NoError(t, hub.TimerUpdated(context.Background(), "cup", doc))

	msg := readMessage(t, cup)
	assert.Equal(t, MessageTypeTimerUpdated, msg.Type)
	assert.Equal(t, "cup", msg.RoomID)
	assert.JSONEq(t, string(doc), string(msg.Payload))

	require.NoError(t, league.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := league.ReadMessage()
	assert.Error(t, err, "клиент другой комнаты не должен получать обновление")
}

func TestHub_InitialMessageFirst(t *testing.T) {
	initial, err := json.Marshal(Message{Type: "TIMER_STATE", Payload: json.RawMessage(`{"tournament":"cup"}`), RoomID: "cup"})
	require.NoError(t, err)
	hub, srv, _ := startHub(t, initial, nil)

	conn := dial(t, srv, "cup")
	waitForRoomSize(t, hub, "cup", 1)

	msg := readMessage(t, conn)
	assert.Equal(t, "TIMER_STATE", msg.Type)
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub, srv, _ := startHub(t, nil, nil)

	conn := dial(t, srv, "cup")
	waitForRoomSize(t, hub, "cup", 1)

	require.NoError(t, conn.Close())
	waitForRoomSize(t, hub, "cup", 0)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, srv, cancel := startHub(t, nil, nil)

	conn := dial(t, srv, "cup")
	waitForRoomSize(t, hub, "cup", 1)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) ||
		strings.Contains(err.Error(), "close"), "unexpected error: %v", err)

	// после остановки хаба рассылка не блокируется
	assert.NoError(t, hub.TimerUpdated(context.Background(), "cup", []byte(`{}`)))
}

func TestClient_UpdatesBeforeStartFollowInitial(t *testing.T) {
	initial, err := json.Marshal(Message{Type: "TIMER_STATE", Payload: json.RawMessage(`{"time_remaining":"60"}`), RoomID: "cup"})
	require.NoError(t, err)
	doc := []byte(`{"time_remaining":"30"}`)

	hub, srv, _ := startHub(t, initial, func(hub *Hub) {
		// клиент уже в комнате, но соединение ещё не открыто
		assert.Equal(t, 1, hub.RoomSize("cup"))
		assert.NoError(t, hub.TimerUpdated(context.Background(), "cup", doc))
	})

	conn := dial(t, srv, "cup")

	first := readMessage(t, conn)
	assert.Equal(t, "TIMER_STATE", first.Type)

	second := readMessage(t, conn)
	assert.Equal(t, MessageTypeTimerUpdated, second.Type)
	assert.JSONEq(t, string(doc), string(second.Payload))
	assert.Equal(t, 1, hub.RoomSize("cup"))
}

func TestClient_JoinAfterShutdown(t *testing.T) {
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	cancel()
	<-done

	client := NewClient(hub, "cup")
	assert.False(t, client.Join())
	assert.Equal(t, 0, hub.RoomSize("cup"))

	// Leave после остановки хаба не блокируется
	client.Leave()
}
