package wshub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// ClientMessage is the JSON envelope received from clients. ID is echoed on
// the ack of commands that have one.
type ClientMessage struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the JSON envelope sent to clients.
type ServerMessage struct {
	Event string `json:"event"`
	ID    *int64 `json:"id,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Client represents a single WebSocket connection in the hub.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	done chan struct{}
	once sync.Once
}

func NewClient(id string, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Close marks the client as finished. Send is never closed so late
// broadcasts cannot panic.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once the client has been closed or evicted.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case msg := <-c.Send:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.Conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// Hub tracks live connections and the room each one listens to.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	log     *zap.Logger
	onEvict func(*Client)
}

// NewHub creates a new Hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		log:     log,
	}
}

// OnEvict sets a callback for slow-consumer evictions. Must be set before use.
func (h *Hub) OnEvict(fn func(*Client)) {
	h.onEvict = fn
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister drops a connection and closes it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()
	c.Close()
}

// Subscribe adds c to roomID's broadcast set.
func (h *Hub) Subscribe(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[string]*Client)
		h.rooms[roomID] = set
	}
	set[c.ID] = c
}

func (h *Hub) Unsubscribe(roomID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(set, clientID)
	if len(set) == 0 {
		delete(h.rooms, roomID)
	}
}

// Broadcast queues msg for every subscriber of roomID.
func (h *Hub) Broadcast(roomID string, msg ServerMessage) {
	h.BroadcastExcept(roomID, "", msg)
}

// BroadcastExcept queues msg for every subscriber of roomID other than
// exceptID. Non-blocking: a subscriber whose queue is full is evicted.
func (h *Hub) BroadcastExcept(roomID, exceptID string, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal broadcast", zap.String("event", msg.Event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.rooms[roomID] {
		if id == exceptID {
			continue
		}
		h.enqueue(c, data)
	}
}

// Send queues msg for a single client. It reports false if the client was
// already closed or had to be evicted.
func (h *Hub) Send(c *Client, msg ServerMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal message", zap.String("event", msg.Event), zap.Error(err))
		return false
	}
	return h.enqueue(c, data)
}

func (h *Hub) enqueue(c *Client, data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		h.log.Warn("evicting slow consumer", zap.String("conn", c.ID), zap.Int("queued", len(c.Send)))
		c.Close()
		if h.onEvict != nil {
			h.onEvict(c)
		}
		return false
	}
}

// Subscribers returns how many connections listen to roomID.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
