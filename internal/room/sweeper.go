package room

import (
	"context"
	"time"

	"github.com/flickfooty/backend/internal/logger"
)

// StartSweeper periodically deletes snapshots of rooms whose idle deadline
// passed while no coordinator was alive to act on it, e.g. across a restart.
func StartSweeper(ctx context.Context, m *Manager, store Store, interval time.Duration) {
	if store == nil || interval <= 0 {
		logger.Infof("[SWEEP] Expiry sweeper disabled")
		return
	}

	logger.Infof("[SWEEP] Expiry sweeper started (interval=%s)", interval)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Infof("[SWEEP] Expiry sweeper stopping")
				return
			case now := <-ticker.C:
				Sweep(ctx, m, store, now)
			}
		}
	}()
}

// Sweep runs one pass and returns how many rooms it deleted.
func Sweep(ctx context.Context, m *Manager, store Store, now time.Time) int {
	due, err := store.DueExpiries(ctx, now)
	if err != nil {
		logger.Errorf("[SWEEP] Failed to fetch due expiries: %v", err)
		return 0
	}

	deleted := 0
	for _, roomID := range due {
		// A live coordinator owns its own timer.
		if m != nil && m.Live(roomID) {
			continue
		}
		won, err := store.ClaimExpiry(ctx, roomID)
		if err != nil {
			logger.Errorf("[SWEEP] claim %s failed: %v", roomID, err)
			continue
		}
		if !won {
			continue
		}
		if err := store.Delete(ctx, roomID); err != nil {
			logger.Errorf("[SWEEP] delete %s failed: %v", roomID, err)
			continue
		}
		deleted++
		logger.Infof("[SWEEP] Deleted expired room %s", roomID)
	}
	return deleted
}
