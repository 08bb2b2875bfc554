package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MessageTypeTimerUpdated - тип сообщения, отправляемого после записи таймера.
const MessageTypeTimerUpdated = "TIMER_UPDATED"

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	RoomID  string          `json:"room_id,omitempty"` // турнир, к которому относится сообщение
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 16
)

type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	room    string
	pending [][]byte // обновления, пришедшие между Join и Start
	started bool
	closed  bool
	mu      sync.Mutex
}

// Hub раздаёт обновления таймеров WebSocket-клиентам, сгруппированным
// по комнатам. Комната - санитизированное имя турнира.
type Hub struct {
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	stopped    bool
	mu         sync.RWMutex
	logger     *slog.Logger
	done       chan struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// NewClient создаёт клиента комнаты. Рассылки комнаты он получает после Join,
// а в сокет они уходят после Start.
func NewClient(hub *Hub, room string) *Client {
	return &Client{
		hub:  hub,
		send: make(chan []byte, sendBufferSize),
		room: room,
	}
}

// Run обслуживает отключение клиентов, пока не отменён ctx.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return nil

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok && clients[client] {
				client.closeSend()
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.rooms, client.room)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", slog.String("room", client.room))
		}
	}
}

// RoomSize возвращает число клиентов в комнате.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// BroadcastToRoom отправляет сообщение всем клиентам комнаты.
// Клиенты с переполненным буфером пропускают сообщение.
func (h *Hub) BroadcastToRoom(room string, message any) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		if !client.enqueue(messageBytes) {
			h.logger.Warn("Client send buffer full, skipping message", slog.String("room", room))
		}
	}
	return nil
}

// TimerUpdated реализует services.TimerNotifier.
func (h *Hub) TimerUpdated(_ context.Context, tournament string, document []byte) error {
	return h.BroadcastToRoom(tournament, Message{
		Type:    MessageTypeTimerUpdated,
		Payload: json.RawMessage(document),
		RoomID:  tournament,
	})
}

// add синхронно добавляет клиента в комнату. false - хаб уже остановлен.
func (h *Hub) add(client *Client) bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	if _, ok := h.rooms[client.room]; !ok {
		h.rooms[client.room] = make(map[*Client]bool)
	}
	h.rooms[client.room][client] = true
	size := len(h.rooms[client.room])
	h.mu.Unlock()
	h.logger.Debug("Client registered", slog.String("room", client.room), slog.Int("clients", size))
	return true
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for room, clients := range h.rooms {
		for client := range clients {
			client.closeSend()
		}
		delete(h.rooms, room)
	}
}

// Join добавляет клиента в комнату. Текущее состояние нужно читать после Join,
// иначе запись между чтением и подпиской до клиента не дойдёт.
// false - хаб остановлен, клиент закрыт.
func (c *Client) Join() bool {
	if c.hub.add(c) {
		return true
	}
	c.closeSend()
	return false
}

// Leave убирает клиента из комнаты и закрывает его очередь отправки.
func (c *Client) Leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// Start привязывает соединение и запускает горутины чтения и записи.
// initial, если не пусто, уходит первым сообщением, за ним - обновления,
// накопленные после Join.
func (c *Client) Start(conn *websocket.Conn, initial []byte) {
	c.conn = conn

	c.mu.Lock()
	if !c.closed {
		if len(initial) > 0 {
			c.send <- initial
		}
		for _, message := range c.pending {
			c.send <- message
		}
	}
	c.pending = nil
	c.started = true
	c.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (c *Client) enqueue(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if !c.started {
		// одно место в буфере остаётся под initial
		if len(c.pending) >= sendBufferSize-1 {
			return false
		}
		c.pending = append(c.pending, message)
		return true
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

// readPump нужен только для обработки pong и закрытия соединения:
// входящие сообщения клиентов игнорируются.
func (c *Client) readPump() {
	defer func() {
		c.Leave()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket closed unexpectedly", slog.String("room", c.room), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("Error writing to client", slog.String("room", c.room), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
