package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/slicestore/pkg/store"
)

const (
	// writeWait bounds a single write to a client.
	writeWait = 5 * time.Second

	// sendBuffer is the number of messages queued per client. A client that
	// falls further behind is disconnected.
	sendBuffer = 64
)

// WatchMessage is sent to /watch clients after every notification pass.
type WatchMessage struct {
	Seq     uint64   `json:"seq"`
	Keys    []string `json:"keys"`
	Global  bool     `json:"global"`
	Invoked int      `json:"invoked"`
	Faults  []string `json:"faults,omitempty"`
}

// client is one /watch connection. Messages are queued on send and written
// by the client's own goroutine, so broadcasting never waits on the network.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// enqueue queues data without blocking. It reports false when the client's
// buffer is full.
func (c *client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close stops the writer and closes the connection. Safe to call repeatedly.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// Hub broadcasts notification passes to WebSocket clients.
// It implements store.Observer; ObserveDispatch never blocks.
type Hub struct {
	store.NopObserver

	clients  map[*client]struct{}
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *slog.Logger
	buffer   int
}

// NewHub creates a hub with no clients.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // inspector is a local debugging aid
			},
		},
		logger: slog.Default(),
		buffer: sendBuffer,
	}
}

// HandleWebSocket upgrades the connection and keeps it registered until the
// client disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("slicestore: watch upgrade failed", "error", err)
		return
	}

	c := newClient(conn, h.buffer)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)

	// Clients never send anything meaningful; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.drop(c)
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.drop(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// ObserveDispatch implements store.Observer.
func (h *Hub) ObserveDispatch(ev store.DispatchEvent) {
	msg := WatchMessage{
		Seq:     ev.Seq,
		Keys:    make([]string, len(ev.Keys)),
		Global:  ev.Global,
		Invoked: ev.Invoked,
	}
	for i, k := range ev.Keys {
		msg.Keys[i] = string(k)
	}
	for _, f := range ev.Faults {
		msg.Faults = append(msg.Faults, f.FormatCompact())
	}
	h.broadcast(msg)
}

func (h *Hub) broadcast(msg WatchMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(data) {
			h.logger.Warn("slicestore: dropping slow watch client", "seq", msg.Seq)
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}
