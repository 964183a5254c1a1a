package ws

import (
	"sync"

	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/room"
)

// Hub maps session IDs to live connections. Room coordinators address
// sessions only by ID through it.
type Hub struct {
	clients map[string]*Client // sessionID -> Client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

var _ room.Transport = (*Hub)(nil)

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.sessionID] = c
	h.mu.Unlock()
	logger.Debugf("[WS] session %s registered (user=%s room=%s)", c.sessionID, c.userID, c.roomID)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.sessionID]; ok && cur == c {
		delete(h.clients, c.sessionID)
		logger.Debugf("[WS] session %s unregistered", c.sessionID)
	}
}

func (h *Hub) client(sessionID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[sessionID]
	return c, ok
}

// Send queues data for sessionID. It never blocks the caller; a full send
// buffer drops the frame.
func (h *Hub) Send(sessionID string, data []byte) {
	c, ok := h.client(sessionID)
	if !ok {
		logger.Debugf("[WS] Send: no client for session %s", sessionID)
		return
	}
	c.enqueue(outbound{data: data})
}

// Close writes a close frame with code and reason, then drops the connection.
func (h *Hub) Close(sessionID string, code int, reason string) {
	c, ok := h.client(sessionID)
	if !ok {
		return
	}
	c.closeWith(code, reason)
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
