package handlers

import (
	"github.com/flickfooty/backend/internal/ws"
	"github.com/gin-gonic/gin"
)

// HandleRoomWebSocket handles real-time room communication
func HandleRoomWebSocket(h *ws.Handler) gin.HandlerFunc {
	return h.HandleRoom
}
