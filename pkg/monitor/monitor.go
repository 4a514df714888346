// Package monitor broadcasts live call lifecycle events to dashboard
// WebSocket clients using a channel-based fan-out hub.
package monitor

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// CallEvent is one lifecycle event on the monitor feed.
type CallEvent struct {
	CallID string    `json:"call_id"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Hub maintains the set of dashboard clients and fans call events out to
// them. Slow clients are dropped rather than allowed to backpressure calls.
type Hub struct {
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a hub. Call Run in a goroutine before publishing.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger.With("component", "monitor.hub"),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("monitor client connected", "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("monitor client disconnected", "remaining", count)

		case data := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow monitor client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish broadcasts one call event. Never blocks the caller; the event is
// dropped when the hub is saturated.
func (h *Hub) Publish(callID, kind, detail string) {
	event := CallEvent{
		CallID: callID,
		Kind:   kind,
		Detail: detail,
		At:     time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("monitor broadcast channel full, dropping event", "kind", kind)
	}
}

// ClientCount returns the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
