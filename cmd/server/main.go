package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flickfooty/backend/internal/api"
	"github.com/flickfooty/backend/internal/auth"
	"github.com/flickfooty/backend/internal/config"
	"github.com/flickfooty/backend/internal/database"
	"github.com/flickfooty/backend/internal/history"
	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/migrations"
	"github.com/flickfooty/backend/internal/redis"
	"github.com/flickfooty/backend/internal/room"
	"github.com/flickfooty/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

func main() {
	// Initialize configuration (loads .env when present)
	cfg := config.Load()

	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Database is optional; without it match history is not recorded
	var db *sqlx.DB
	var matches *history.Store
	var roomHistory room.History
	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			logger.Infof("[DB] Running migrations on startup...")
			if err := migrations.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
				logger.Fatalf("Failed to run migrations: %v", err)
			}
		}
		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		matches = history.NewStore(db)
		roomHistory = matches
	} else {
		logger.Warnf("[DB] DATABASE_URL not set - match history disabled")
	}

	opts := room.Options{
		IdleGrace:          cfg.RoomIdleGrace(),
		RequireResumeToken: cfg.RequireResumeToken,
	}
	if cfg.JWTSecret != "" {
		opts.Tokens = auth.NewIssuer(cfg.JWTSecret, cfg.ResumeTokenTTL())
	} else if cfg.RequireResumeToken {
		logger.Fatalf("REQUIRE_RESUME_TOKEN is set but JWT_SECRET is empty")
	}

	hub := ws.NewHub()
	store := room.NewRedisStore(rdb, cfg.RoomSnapshotTTL())
	rooms := room.NewManager(store, roomHistory, hub, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Rooms whose grace period ran out while no instance held them
	room.StartSweeper(ctx, rooms, store, time.Duration(cfg.ExpirySweepIntervalSecs)*time.Second)

	// Admin clears made on other instances
	if err := ws.StartRoomEventSubscriber(ctx, rdb, rooms); err != nil {
		logger.Fatalf("Failed to subscribe to room events: %v", err)
	}

	wsHandler := ws.NewHandler(hub, rooms, ws.Settings{
		ReadLimit:  cfg.WSReadLimit,
		PongWait:   time.Duration(cfg.WSPongWaitSecs) * time.Second,
		WriteWait:  time.Duration(cfg.WSWriteWaitSecs) * time.Second,
		PingPeriod: time.Duration(cfg.WSPingPeriodSecs) * time.Second,
		SendBuffer: cfg.WSSendBufferSize,
	})

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, api.Deps{
		Config:  cfg,
		Rooms:   rooms,
		Hub:     hub,
		WS:      wsHandler,
		DB:      db,
		Redis:   rdb,
		History: matches,
	})

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		logger.Infof("Starting FlickFooty server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}
	rooms.Shutdown(shutdownCtx)
}
