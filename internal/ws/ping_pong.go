package ws

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

func (h *Hub) sendPing(c *Connection) error {
	if c.Conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.Conn.WriteMessage(websocket.PingMessage, nil)
}

func (h *Hub) handlePong(c *Connection) {
	if c.Conn == nil {
		return
	}
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		h.mu.Lock()
		c.LastSeen = time.Now()
		h.mu.Unlock()
		return nil
	})
}
