package ws

import (
	"encoding/json"
	"time"

	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	"github.com/gorilla/websocket"
)

const maxMessageSize = 4096

// ReadPump only services control frames; dashboards never send commands.
func (h *Hub) ReadPump(c *Connection) {
	defer h.Unregister(c)
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	h.handlePong(c)
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket read error", "client", c.ID, "err", err)
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		h.mu.Lock()
		c.LastSeen = time.Now()
		h.mu.Unlock()
	}
}

func (h *Hub) WritePump(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		logger.Log.Debug("Write pump stopped", "client", c.ID)
	}()
	for {
		select {
		case msg := <-c.SendCh:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Log.Error("Failed to marshal message", "client", c.ID, "type", msg.Type, "err", err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Log.Warn("Failed to send message", "client", c.ID, "err", err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.sendPing(c); err != nil {
				logger.Log.Warn("Ping failed", "client", c.ID, "err", err)
				return
			}
		case <-c.DisconnectCh:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
