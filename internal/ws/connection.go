package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Connection is one websocket client. Frames are queued on a bounded
// buffer and written by writePump; a full buffer means the client is too
// slow and Send refuses the frame.
type Connection struct {
	id     string
	userID string
	ws     *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

func NewConnection(conn *websocket.Conn, userID string, buffer int) *Connection {
	if buffer <= 0 {
		buffer = 256
	}
	return &Connection{
		id:     uuid.NewString(),
		userID: userID,
		ws:     conn,
		send:   make(chan []byte, buffer),
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) UserID() string { return c.userID }

func (c *Connection) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops writePump after it has flushed what is already queued.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump drains the send buffer and pings the client every pingInterval.
// onPing runs after each successful ping.
func (c *Connection) writePump(pingInterval, writeDeadline time.Duration, onPing func()) error {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return nil
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return err
			}
			if onPing != nil {
				onPing()
			}
		}
	}
}
