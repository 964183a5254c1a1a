// Command bot is a headless player: it joins (or creates) a room, readies up
// and takes its turns with a simple aim-at-the-ball strategy.
package main

import (
	"context"
	"errors"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flickfooty/backend/internal/client"
	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/physics"
	"github.com/flickfooty/backend/internal/protocol"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	tickRate    = 60
	thinkTime   = 800 * time.Millisecond
	shotImpulse = 1800.0
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Infof("No .env file found, using environment variables")
	}
	if err := logger.Init(getEnv("LOG_LEVEL", "info"), getEnv("APP_ENV", "development")); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	baseURL := getEnv("BOT_SERVER_URL", "http://localhost:8080")
	userID := getEnv("BOT_USER_ID", "bot-"+uuid.NewString()[:8])
	formation := getEnv("BOT_FORMATION", physics.DefaultFormation)
	cache := client.FileRoomCache{Path: getEnv("BOT_ROOM_CACHE", ".flickfooty/room")}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := client.NewRoomChecker(baseURL, cache)
	roomID, err := pickRoom(ctx, checker)
	if err != nil {
		logger.Fatalf("Failed to pick a room: %v", err)
	}
	if err := cache.Set(roomID); err != nil {
		logger.Warnf("[BOT] could not cache room id: %v", err)
	}

	tr, err := client.DialRoom(ctx, baseURL, roomID, client.JoinParams{
		UserID:   userID,
		Nickname: getEnv("BOT_NICKNAME", userID),
	})
	if err != nil {
		logger.Fatalf("Failed to join room %s: %v", roomID, err)
	}
	defer tr.Close()
	logger.Infof("[BOT] %s joined room %s", userID, roomID)

	world := physics.NewWorld(formation, formation)
	bus := client.NewBus()
	match := client.NewMatch(tr, world, bus, client.Config{UserID: userID})
	logEvents(bus)
	go match.Pump(tr.Messages())

	if err := match.Ready(formation); err != nil {
		logger.Fatalf("Failed to send READY: %v", err)
	}

	ticker := time.NewTicker(time.Second / tickRate)
	defer ticker.Stop()
	var turnSeen time.Time

	for {
		select {
		case <-ctx.Done():
			logger.Infof("[BOT] leaving room %s", roomID)
			match.Leave()
			return

		case <-tr.Done():
			code := tr.CloseCode()
			logger.Infof("[BOT] connection closed (code=%d): %v", code, tr.Err())
			if code == protocol.CloseRoomCleared || code == protocol.CloseRoomFull {
				cache.Clear()
			}
			return

		case <-ticker.C:
			match.Tick(1.0 / tickRate)

			if !match.MyTurn() {
				turnSeen = time.Time{}
				continue
			}
			if turnSeen.IsZero() {
				turnSeen = time.Now()
			}
			if time.Since(turnSeen) < thinkTime {
				continue
			}
			id, force := chooseShot(world, match.TeamID())
			if err := match.Shoot(id, force); err != nil {
				logger.Warnf("[BOT] shot rejected: %v", err)
			}
			turnSeen = time.Time{}
		}
	}
}

// pickRoom prefers BOT_ROOM_ID, then the cached room if it still exists, and
// otherwise asks the server for a fresh one.
func pickRoom(ctx context.Context, checker *client.RoomChecker) (string, error) {
	if id := os.Getenv("BOT_ROOM_ID"); id != "" {
		return id, nil
	}
	id, status, err := checker.Resume(ctx)
	switch {
	case err == nil:
		logger.Infof("[BOT] resuming room %s (%s)", id, status)
		return id, nil
	case errors.Is(err, client.ErrRoomGone), errors.Is(err, client.ErrNoCachedRoom):
		return checker.Create(ctx)
	default:
		return "", err
	}
}

// chooseShot flicks the striker closest to the ball straight at it.
func chooseShot(world *physics.World, team int) (string, protocol.Vec) {
	ball, _ := world.Body(physics.BallID)
	best, bestDist := "", math.MaxFloat64
	for _, id := range world.StrikersOf(team) {
		b, _ := world.Body(id)
		if d := b.Pos.DistanceTo(ball.Pos); d < bestDist {
			best, bestDist = id, d
		}
	}
	striker, _ := world.Body(best)
	dir := ball.Pos.Minus(striker.Pos).Normalize()
	f := dir.Times(shotImpulse)
	return best, protocol.Vec{X: f.X, Y: f.Y}
}

func logEvents(bus *client.Bus) {
	client.Subscribe(bus, func(ev client.RosterChanged) {
		logger.Infof("[BOT] roster changed (%s): %d players", ev.Reason, len(ev.Players))
	})
	client.Subscribe(bus, func(ev client.MatchStarted) {
		logger.Infof("[BOT] match started, playing team %d", ev.TeamID)
	})
	client.Subscribe(bus, func(ev client.GoalScored) {
		logger.Infof("[BOT] goal for team %d, score %d-%d", ev.ScoreTeam, ev.Scores[0], ev.Scores[1])
	})
	client.Subscribe(bus, func(ev client.Paused) {
		logger.Infof("[BOT] paused: team %d %s", ev.TeamID, ev.Reason)
	})
	client.Subscribe(bus, func(ev client.OpponentLeft) {
		logger.Infof("[BOT] team %d left the game", ev.TeamID)
	})
	client.Subscribe(bus, func(ev client.RoomError) {
		logger.Warnf("[BOT] room error: %s", ev.Msg)
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
