package handlers

import (
	"net/http"
	"time"

	"github.com/flickfooty/backend/internal/room"
	"github.com/flickfooty/backend/internal/ws"
	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status
func HealthCheck(rooms *room.Manager, hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"service":  "flickfooty-api",
			"version":  version,
			"uptime":   time.Since(startTime).String(),
			"rooms":    rooms.Len(),
			"sessions": hub.Len(),
		})
	}
}
