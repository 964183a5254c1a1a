package trajectory

import (
	"time"

	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/protocol"
)

type State int

const (
	StateIdle State = iota
	StateBuffering
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBuffering:
		return "BUFFERING"
	case StateDraining:
		return "DRAINING"
	}
	return "UNKNOWN"
}

// Target is the local simulation the replayer writes into.
type Target interface {
	SetBodyState(id string, s protocol.BodyState) bool
	ApplySnapshot(p protocol.Positions)
	ZeroVelocities()
}

// Handlers receive replayed events. Nil handlers are skipped.
type Handlers struct {
	OnGoal     func(protocol.Goal)
	OnSound    func(name string)
	OnTurnSync func(protocol.Positions)
}

type ReplayerConfig struct {
	BufferThreshold time.Duration
}

func (c ReplayerConfig) withDefaults() ReplayerConfig {
	if c.BufferThreshold <= 0 {
		c.BufferThreshold = 150 * time.Millisecond
	}
	return c
}

// Replayer reproduces the opponent's turn from streamed frames without
// simulating it. It moves IDLE -> BUFFERING -> DRAINING -> IDLE and is
// driven only from the local tick.
type Replayer struct {
	target   Target
	handlers Handlers
	cfg      ReplayerConfig

	state    State
	queue    []Item
	buffered float64
}

func NewReplayer(target Target, handlers Handlers, cfg ReplayerConfig) *Replayer {
	return &Replayer{target: target, handlers: handlers, cfg: cfg.withDefaults()}
}

func (r *Replayer) State() State { return r.state }

// Len returns the number of queued items.
func (r *Replayer) Len() int { return len(r.queue) }

// Buffered returns the simulated seconds received since Begin.
func (r *Replayer) Buffered() float64 { return r.buffered }

// Begin starts buffering a new opponent turn.
func (r *Replayer) Begin() {
	r.queue = nil
	r.buffered = 0
	r.state = StateBuffering
}

// PushBatch queues the items of a TRAJECTORY_BATCH. Batches arriving while
// idle belong to no known turn and are dropped.
func (r *Replayer) PushBatch(b protocol.TrajectoryBatch) {
	if r.state == StateIdle {
		logger.Debugf("[REPLAY] dropping batch of %d items while idle", len(b.Frames))
		return
	}
	for _, wire := range b.Frames {
		it, err := fromWire(wire)
		if err != nil {
			logger.Warnf("[REPLAY] skipping item: %v", err)
			continue
		}
		r.push(it)
	}
	r.maybeDrain()
}

// PushGoal queues a GOAL. While idle it is applied at once.
func (r *Replayer) PushGoal(g protocol.Goal) {
	ev := EventItem{Kind: EventGoal, Goal: &g}
	if r.state == StateIdle {
		r.process(ev)
		return
	}
	r.push(ev)
	r.maybeDrain()
}

// PushTurnSync queues a TURN_SYNC. While idle it is applied at once.
func (r *Replayer) PushTurnSync(p protocol.Positions) {
	ev := EventItem{Kind: EventTurnSync, Sync: &p}
	if r.state == StateIdle {
		r.process(ev)
		return
	}
	r.push(ev)
	r.maybeDrain()
}

func (r *Replayer) push(it Item) {
	r.queue = append(r.queue, it)
	r.buffered += it.duration()
}

func (r *Replayer) maybeDrain() {
	if r.state != StateBuffering {
		return
	}
	if r.buffered >= r.cfg.BufferThreshold.Seconds() || r.hasTerminal() {
		r.state = StateDraining
	}
}

func (r *Replayer) hasTerminal() bool {
	for _, it := range r.queue {
		if ev, ok := it.(EventItem); ok && ev.terminal() {
			return true
		}
	}
	return false
}

// Tick consumes up to dt seconds of queued frames. Events are handled as
// soon as they reach the head of the queue and cost no time. A frame longer
// than the remaining budget is applied anyway and keeps the leftover dt.
func (r *Replayer) Tick(dt float64) {
	if r.state != StateDraining {
		return
	}
	budget := dt
	for len(r.queue) > 0 {
		switch it := r.queue[0].(type) {
		case EventItem:
			r.queue = r.queue[1:]
			r.process(it)
			if r.state != StateDraining {
				return
			}

		case *FrameItem:
			if budget <= 0 {
				return
			}
			r.apply(it.Frame)
			if it.DT <= budget {
				budget -= it.DT
				r.queue = r.queue[1:]
			} else {
				it.DT -= budget
				return
			}
		}
	}
}

func (r *Replayer) apply(f Frame) {
	for id, s := range f.Bodies {
		r.target.SetBodyState(id, s)
	}
}

func (r *Replayer) process(ev EventItem) {
	switch ev.Kind {
	case EventSound:
		if r.handlers.OnSound != nil {
			r.handlers.OnSound(ev.Sound)
		}
	case EventGoal:
		if r.handlers.OnGoal != nil {
			r.handlers.OnGoal(*ev.Goal)
		}
	case EventTurnSync:
		r.target.ApplySnapshot(*ev.Sync)
		r.target.ZeroVelocities()
		r.queue = nil
		r.buffered = 0
		r.state = StateIdle
		if r.handlers.OnTurnSync != nil {
			r.handlers.OnTurnSync(*ev.Sync)
		}
	}
}

// Reset drops any queued turn and returns to idle. Used when the server
// resumes a match from a snapshot.
func (r *Replayer) Reset() {
	r.queue = nil
	r.buffered = 0
	r.state = StateIdle
}
