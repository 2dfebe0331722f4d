package ws

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/peter-kozarec/tickreplay/pkg/bus"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 1024

	DefaultBroadcastCapacity = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type message struct {
	id      bus.EventId
	payload any
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	codec Codec
	send  chan []byte
}

// Hub fans bus events out to every connected renderer. Each event is encoded
// at most once per codec.
type Hub struct {
	logger     *zap.Logger
	clients    map[*client]struct{}
	broadcast  chan message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	count      atomic.Int64
}

func NewHub(logger *zap.Logger, capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultBroadcastCapacity
	}
	return &Hub{
		logger:     logger,
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan message, capacity),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Publish queues an event without blocking. Events are dropped when the hub
// is saturated.
func (h *Hub) Publish(id bus.EventId, payload any) {
	select {
	case h.broadcast <- message{id, payload}:
	default:
		h.logger.Warn("ws broadcast queue full, dropping event", zap.Stringer("event", id))
	}
}

func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Forward returns a bus handler that publishes every event it receives as id.
func Forward[T any](h *Hub, id bus.EventId) bus.EventHandler[T] {
	return func(_ context.Context, payload T) {
		h.Publish(id, payload)
	}
}

func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return ctx.Err()

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.logger.Debug("ws client connected", zap.Stringer("codec", c.codec), zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) fanOut(msg message) {
	var frames [2][]byte
	for c := range h.clients {
		frame := frames[c.codec]
		if frame == nil {
			b, err := c.codec.Encode(msg.id, msg.payload)
			if err != nil {
				h.logger.Error("ws encode failed", zap.Stringer("event", msg.id), zap.Error(err))
				return
			}
			frames[c.codec] = b
			frame = b
		}
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("ws client too slow, disconnecting")
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.count.Store(int64(len(h.clients)))
		h.logger.Debug("ws client disconnected", zap.Int("clients", len(h.clients)))
	}
}

// HandleWS upgrades the request. The codec comes from the codec query
// parameter and defaults to json.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	codec, err := ParseCodec(r.URL.Query().Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		hub:   h,
		conn:  conn,
		codec: codec,
		send:  make(chan []byte, sendBufferSize),
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only services control frames, clients do not send commands here.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("ws unexpected close", zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(c.codec.messageType(), frame); err != nil {
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
