package api

import (
	"github.com/flickfooty/backend/internal/api/handlers"
	"github.com/flickfooty/backend/internal/config"
	"github.com/flickfooty/backend/internal/history"
	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/middleware"
	"github.com/flickfooty/backend/internal/room"
	"github.com/flickfooty/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Deps carries everything the routes need. DB, Redis and History are
// optional.
type Deps struct {
	Config  *config.Config
	Rooms   *room.Manager
	Hub     *ws.Hub
	WS      *ws.Handler
	DB      *sqlx.DB
	Redis   *redis.Client
	History *history.Store
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d Deps) {
	router.Use(middleware.CORSMiddleware(d.Config))

	if d.Config.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		logger.Infof("[DEV MODE] no-cache headers enabled for all routes")
	}

	api := router.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck(d.Rooms, d.Hub))

		rooms := api.Group("/room")
		{
			rooms.POST("", handlers.CreateRoom(d.Rooms))
			rooms.POST("/check", handlers.CheckRoom(d.Rooms))
			rooms.GET("/:roomId/matches", handlers.GetRoomMatches(d.History))
			rooms.GET("/:roomId/websocket", middleware.WebSocketCORSCheck(d.Config), handlers.HandleRoomWebSocket(d.WS))
			rooms.DELETE("/:roomId", handlers.AdminKeyMiddleware(d.Config), handlers.ClearRoom(d.Rooms, d.DB, d.Redis))
		}

		adminGroup := api.Group("/admin", handlers.AdminKeyMiddleware(d.Config))
		{
			adminGroup.GET("/audit", handlers.GetAdminAudit(d.DB))
		}
	}
}
