package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"txdash/internal/core"
)

const writeWait = 5 * time.Second

// StatusMessage is the websocket frame sent to clients.
type StatusMessage struct {
	Type string `json:"type"`
	core.DatasetStatus
}

// Hub tracks websocket clients and broadcasts dataset status updates.
// New clients immediately receive the latest known status.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	last    core.DatasetStatus

	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
}

// NewHub creates a hub. allowOrigin decides websocket origin checks; nil allows all.
func NewHub(logger *slog.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if allowOrigin == nil {
		allowOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin,
		},
		clients:    make(map[*websocket.Conn]bool),
		last:       core.DatasetStatus{State: core.StatePending, UpdatedAt: time.Now().UTC()},
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop until ctx is cancelled or Stop is called.
func (h *Hub) Start(ctx context.Context) {
	go func() {
		defer h.closeAll()
		for {
			select {
			case <-ctx.Done():
				h.Stop()
				return
			case <-h.done:
				return
			case conn := <-h.register:
				h.mu.Lock()
				h.clients[conn] = true
				h.sendLastLocked(conn)
				n := len(h.clients)
				h.mu.Unlock()
				h.logger.Debug("Websocket client connected", "clients", n)
			case conn := <-h.unregister:
				h.mu.Lock()
				if _, ok := h.clients[conn]; ok {
					delete(h.clients, conn)
					conn.Close()
				}
				n := len(h.clients)
				h.mu.Unlock()
				h.logger.Debug("Websocket client disconnected", "clients", n)
			case msg := <-h.broadcast:
				h.mu.Lock()
				for conn := range h.clients {
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						h.logger.Warn("Dropping websocket client", "error", err)
						conn.Close()
						delete(h.clients, conn)
					}
				}
				h.mu.Unlock()
			}
		}
	}()
}

// sendLastLocked writes the latest status to a newly registered client.
// Holding h.mu orders it against Notify, so every update after the
// snapshot also reaches the client through broadcast.
func (h *Hub) sendLastLocked(conn *websocket.Conn) {
	msg, err := json.Marshal(StatusMessage{Type: "dataset_status", DatasetStatus: h.last})
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		h.logger.Warn("Dropping websocket client", "error", err)
		conn.Close()
		delete(h.clients, conn)
	}
}

// Stop terminates the hub loop and closes every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Notify implements Notifier.
func (h *Hub) Notify(ctx context.Context, status core.DatasetStatus) error {
	h.mu.Lock()
	h.last = status
	h.mu.Unlock()

	msg, err := json.Marshal(StatusMessage{Type: "dataset_status", DatasetStatus: status})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP upgrades the request and streams status updates to the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade to websocket", "error", err)
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	// the server's read timeout must not end a long-lived stream
	_ = conn.SetReadDeadline(time.Time{})

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				select {
				case h.unregister <- conn:
				case <-h.done:
				}
				return
			}
		}
	}()
}
