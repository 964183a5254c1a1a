package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/flickfooty/backend/internal/history"
	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/room"
	"github.com/gin-gonic/gin"
)

const (
	roomIDLength      = 4
	roomIDMaxAttempts = 10
)

// CheckRoom reports whether a room exists without creating it. Clients call
// it before resuming a cached room id.
func CheckRoom(rooms *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RoomID string `json:"roomId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roomId required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		exists, status, err := rooms.Check(ctx, req.RoomID)
		if err != nil {
			logger.Errorf("[API] check room %s: %v", req.RoomID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !exists {
			c.JSON(http.StatusOK, gin.H{"exists": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"exists": true, "status": status})
	}
}

// CreateRoom hands out an unused room id. The room itself is created by the
// first WebSocket join.
func CreateRoom(rooms *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		for attempt := 0; attempt < roomIDMaxAttempts; attempt++ {
			id := generateRoomID()
			exists, _, err := rooms.Check(ctx, id)
			if err != nil {
				logger.Errorf("[API] create room: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			if !exists {
				c.JSON(http.StatusCreated, gin.H{"roomId": id})
				return
			}
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no free room id, try again"})
	}
}

// GetRoomMatches lists recent matches played in a room.
func GetRoomMatches(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "match history disabled"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		if limit <= 0 || limit > 100 {
			limit = 10
		}

		matches, err := store.RecentMatches(c.Request.Context(), c.Param("roomId"), limit)
		if err != nil {
			logger.Errorf("[API] matches for room %s: %v", c.Param("roomId"), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches})
	}
}
