package ws

import (
	"time"

	"github.com/The-Promised-Neverland/tsb/internal/models"
	"github.com/gorilla/websocket"
)

const sendBuffer = 256

// Connection is one dashboard subscribed to transfer progress.
type Connection struct {
	ID           string
	RemoteAddr   string
	Conn         *websocket.Conn
	LastSeen     time.Time
	DisconnectCh chan struct{}
	SendCh       chan models.Message
}

func NewConnection(id string, conn *websocket.Conn) *Connection {
	return &Connection{
		ID:           id,
		RemoteAddr:   conn.RemoteAddr().String(),
		Conn:         conn,
		LastSeen:     time.Now(),
		DisconnectCh: make(chan struct{}),
		SendCh:       make(chan models.Message, sendBuffer),
	}
}
