package trajectory

import (
	"sync"
	"time"
)

// DefaultGoalInterval is the minimum time between two accepted goals.
const DefaultGoalInterval = 2 * time.Second

// GoalGuard drops a goal reported again within the guard interval, whether
// it came from the local simulation or from the replayed stream.
type GoalGuard struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	last     time.Time
	seen     bool
}

func NewGoalGuard(interval time.Duration) *GoalGuard {
	if interval <= 0 {
		interval = DefaultGoalInterval
	}
	return &GoalGuard{interval: interval, now: time.Now}
}

// Allow reports whether a goal may be applied now and, if so, starts a new
// guard window.
func (g *GoalGuard) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if g.seen && now.Sub(g.last) < g.interval {
		return false
	}
	g.last = now
	g.seen = true
	return true
}

// Reset forgets the last goal, e.g. when a new match starts.
func (g *GoalGuard) Reset() {
	g.mu.Lock()
	g.seen = false
	g.mu.Unlock()
}
