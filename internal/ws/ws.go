// Package ws fans transfer progress out to websocket dashboards.
package ws

import (
	"net/http"
	"sync"

	"github.com/The-Promised-Neverland/tsb/internal/models"
	"github.com/The-Promised-Neverland/tsb/internal/session"
	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Connection
	closed   bool
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register starts the pumps for an upgraded connection and greets it.
func (h *Hub) Register(conn *websocket.Conn) *Connection {
	c := NewConnection(uuid.New().String(), conn)
	c.SendCh <- models.Message{Type: models.MsgConnected, Payload: map[string]string{"clientId": c.ID}}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return nil
	}
	h.clients[c.ID] = c
	h.mu.Unlock()
	logger.Log.Info("Dashboard connected", "client", c.ID, "remote", c.RemoteAddr)
	go h.WritePump(c)
	go h.ReadPump(c)
	return c
}

func (h *Hub) Unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.DisconnectCh)
	logger.Log.Info("Dashboard disconnected", "client", c.ID)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. Slow clients drop messages instead of blocking the sender.
func (h *Hub) Broadcast(msg models.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		select {
		case c.SendCh <- msg:
		default:
			logger.Log.Warn("Dropping message for slow dashboard", "client", id, "type", msg.Type)
		}
	}
}

// Notify lets the hub observe the receiver.
func (h *Hub) Notify(eventType string, snap session.Snapshot) {
	h.Broadcast(models.Message{Type: eventType, Payload: snap})
}

// UpgradeHandler serves GET /ws.
func (h *Hub) UpgradeHandler(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("Failed to upgrade WebSocket", "err", err)
		return
	}
	h.Register(conn)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.DisconnectCh)
	}
}
