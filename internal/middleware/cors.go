package middleware

import (
	"strings"
	"time"

	"github.com/flickfooty/backend/internal/config"
	"github.com/flickfooty/backend/internal/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// productionOrigins are always allowed outside development.
var productionOrigins = []string{
	"https://flickfooty.app",
	"https://play.flickfooty.app",
}

func allowedOrigins(cfg *config.Config) []string {
	out := append([]string(nil), productionOrigins...)
	if cfg.FrontendURL != "" {
		out = append(out, cfg.FrontendURL)
	}
	return out
}

func isDevOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:")
}

// CORSMiddleware returns a CORS middleware configured for the environment
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	logger.Infof("[CORS] Environment: %s, FrontendURL: %s", cfg.Environment, cfg.FrontendURL)

	corsConfig := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"X-Admin-Key", "Accept", "Cache-Control", "X-Requested-With",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		MaxAge: 12 * time.Hour, // Cache preflight responses
	}

	// Configure allowed origins based on environment
	if cfg.Environment == "development" {
		corsConfig.AllowOriginFunc = isDevOrigin
	} else {
		origins := allowedOrigins(cfg)
		corsConfig.AllowOrigins = origins
		logger.Infof("[CORS] Production allowed origins: %v", origins)
	}

	return cors.New(corsConfig)
}

// WebSocketCORSCheck validates WebSocket upgrade origins. Non-browser
// clients (the bot, tests) send no Origin and are let through.
func WebSocketCORSCheck(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only check for WebSocket upgrade requests
		if strings.ToLower(c.GetHeader("Connection")) != "upgrade" ||
			strings.ToLower(c.GetHeader("Upgrade")) != "websocket" {
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		var allowed bool
		if cfg.Environment == "development" {
			allowed = isDevOrigin(origin)
		} else {
			for _, o := range allowedOrigins(cfg) {
				if origin == o {
					allowed = true
					break
				}
			}
		}

		if !allowed {
			logger.Warnf("[WS] rejected upgrade from origin %s", origin)
			c.JSON(403, gin.H{"error": "WebSocket origin not allowed"})
			c.Abort()
			return
		}

		c.Next()
	}
}
