package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/flickfooty/backend/internal/admin"
	"github.com/flickfooty/backend/internal/config"
	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/room"
	"github.com/flickfooty/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const adminKeyHeader = "X-Admin-Key"

// AdminKeyMiddleware guards admin routes with the shared ADMIN_API_KEY.
// Without a configured key every admin call is refused.
func AdminKeyMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(adminKeyHeader)
		var ok bool
		switch {
		case cfg.AdminKeyHash != "":
			ok = admin.VerifyKey(cfg.AdminKeyHash, key)
		case cfg.AdminAPIKey != "":
			ok = subtle.ConstantTimeCompare([]byte(key), []byte(cfg.AdminAPIKey)) == 1
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin API disabled"})
			return
		}
		if !ok {
			logger.Warnf("[ADMIN] rejected key from %s on %s", c.ClientIP(), c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			return
		}
		c.Next()
	}
}

// ClearRoom wipes a room's storage, closes its sessions and tells other
// instances to do the same.
func ClearRoom(rooms *room.Manager, db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		details := map[string]interface{}{"room_id": roomID}
		if err := rooms.Clear(ctx, roomID); err != nil {
			logger.Errorf("[ADMIN] clear room %s: %v", roomID, err)
			admin.LogAction(ctx, db, c.ClientIP(), c.FullPath(), "clear_room", details, false)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if rdb != nil {
			if err := ws.PublishRoomCleared(ctx, rdb, roomID); err != nil {
				logger.Warnf("[ADMIN] %v", err)
			}
		}
		admin.LogAction(ctx, db, c.ClientIP(), c.FullPath(), "clear_room", details, true)
		logger.Infof("[ADMIN] room %s cleared by %s", roomID, c.ClientIP())
		c.JSON(http.StatusOK, gin.H{"cleared": true, "roomId": roomID})
	}
}

// GetAdminAudit returns recent admin actions.
func GetAdminAudit(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database disabled"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		actions, err := admin.RecentActions(c.Request.Context(), db, limit, offset)
		if err != nil {
			logger.Errorf("[ADMIN] audit: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"actions": actions})
	}
}
