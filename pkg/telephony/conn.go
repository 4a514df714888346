package telephony

import (
	"errors"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// ErrConnClosed indicates a write against a closed media connection.
var ErrConnClosed = errors.New("telephony: connection closed")

// Conn wraps the media-stream WebSocket for concurrent-safe outbound writes.
// The read side stays with the HTTP handler; Conn only serializes writes.
type Conn struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

// NewConn wraps an upgraded media-stream connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// WriteFrame sends one audio frame as a media message.
// Returns ErrConnClosed after MarkClosed; transport errors pass through.
func (c *Conn) WriteFrame(streamSID string, frame []byte) error {
	data, err := EncodeMedia(streamSID, frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// MarkClosed stops further writes. Safe to call more than once.
func (c *Conn) MarkClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
