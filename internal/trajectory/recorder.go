package trajectory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flickfooty/backend/internal/protocol"
)

// Sender delivers one message to the room.
type Sender interface {
	Send(msg protocol.Message) error
}

type RecorderConfig struct {
	SendInterval time.Duration
	Precision    int
}

func (c RecorderConfig) withDefaults() RecorderConfig {
	if c.SendInterval <= 0 {
		c.SendInterval = 100 * time.Millisecond
	}
	if c.Precision <= 0 {
		c.Precision = DefaultPrecision
	}
	return c
}

// Recorder samples the local simulation during the local player's turn and
// streams it as TRAJECTORY_BATCH messages. GOAL and TURN_SYNC always go out
// after every frame captured before them.
type Recorder struct {
	sender  Sender
	cfg     RecorderConfig
	buf     []protocol.TrajectoryItem
	elapsed float64
	active  bool
}

func NewRecorder(sender Sender, cfg RecorderConfig) *Recorder {
	return &Recorder{sender: sender, cfg: cfg.withDefaults()}
}

// Start begins a recording turn, discarding anything left from the last one.
func (r *Recorder) Start() {
	r.buf = nil
	r.elapsed = 0
	r.active = true
}

func (r *Recorder) Active() bool { return r.active }

// Pending returns the number of buffered items not yet sent.
func (r *Recorder) Pending() int { return len(r.buf) }

// Capture appends one quantized frame covering dt seconds of simulation and
// flushes once a send interval has accumulated.
func (r *Recorder) Capture(dt float64, bodies map[string]protocol.BodyState) error {
	if !r.active {
		return nil
	}
	r.buf = append(r.buf, protocol.TrajectoryItem{
		DT:     dt,
		Bodies: Quantize(bodies, r.cfg.Precision),
	})
	r.elapsed += dt
	if r.elapsed >= r.cfg.SendInterval.Seconds() {
		return r.Flush()
	}
	return nil
}

// Sound queues a zero-duration SOUND event behind the frames already
// buffered.
func (r *Recorder) Sound(name string) {
	if !r.active {
		return
	}
	data, _ := json.Marshal(soundData{Name: name})
	r.buf = append(r.buf, protocol.TrajectoryItem{Event: string(EventSound), Data: data})
}

// Flush sends buffered items as one batch.
func (r *Recorder) Flush() error {
	r.elapsed = 0
	if len(r.buf) == 0 {
		return nil
	}
	batch := protocol.TrajectoryBatch{Frames: r.buf}
	r.buf = nil
	if err := r.sender.Send(batch); err != nil {
		return fmt.Errorf("send trajectory batch: %w", err)
	}
	return nil
}

// Goal flushes pending frames, then reports the goal.
func (r *Recorder) Goal(g protocol.Goal) error {
	if err := r.Flush(); err != nil {
		return err
	}
	if err := r.sender.Send(g); err != nil {
		return fmt.Errorf("send goal: %w", err)
	}
	return nil
}

// Finish ends the turn: pending frames first, then the authoritative
// snapshot.
func (r *Recorder) Finish(p protocol.Positions) error {
	r.active = false
	if err := r.Flush(); err != nil {
		return err
	}
	if err := r.sender.Send(protocol.TurnSync{Positions: p}); err != nil {
		return fmt.Errorf("send turn sync: %w", err)
	}
	return nil
}
