package trajectory

import (
	"encoding/json"
	"fmt"

	"github.com/flickfooty/backend/internal/protocol"
)

// EventKind names the in-band events carried between physics frames.
type EventKind string

const (
	EventGoal     EventKind = "GOAL"
	EventTurnSync EventKind = "TURN_SYNC"
	EventSound    EventKind = "SOUND"
)

// Frame is one physics sample. DT is the simulated time it covers, not the
// wall-clock time it was sent.
type Frame struct {
	DT     float64
	Bodies map[string]protocol.BodyState
}

// Item is a replay queue entry: a *FrameItem or an EventItem.
type Item interface {
	duration() float64
}

type FrameItem struct {
	Frame
}

func (f *FrameItem) duration() float64 { return f.DT }

// EventItem is instantaneous. Exactly one of Goal, Sync or Sound is set,
// matching Kind.
type EventItem struct {
	Kind  EventKind
	Goal  *protocol.Goal
	Sync  *protocol.Positions
	Sound string
}

func (EventItem) duration() float64 { return 0 }

// terminal events end buffering as soon as they are queued.
func (e EventItem) terminal() bool {
	return e.Kind == EventGoal || e.Kind == EventTurnSync
}

type soundData struct {
	Name string `json:"name"`
}

// fromWire converts one TRAJECTORY_BATCH entry.
func fromWire(it protocol.TrajectoryItem) (Item, error) {
	switch EventKind(it.Event) {
	case "":
		return &FrameItem{Frame{DT: it.DT, Bodies: it.Bodies}}, nil
	case EventSound:
		var d soundData
		if len(it.Data) > 0 {
			if err := json.Unmarshal(it.Data, &d); err != nil {
				return nil, fmt.Errorf("sound event: %w", err)
			}
		}
		return EventItem{Kind: EventSound, Sound: d.Name}, nil
	case EventGoal:
		var g protocol.Goal
		if err := json.Unmarshal(it.Data, &g); err != nil {
			return nil, fmt.Errorf("goal event: %w", err)
		}
		return EventItem{Kind: EventGoal, Goal: &g}, nil
	case EventTurnSync:
		var p protocol.Positions
		if err := json.Unmarshal(it.Data, &p); err != nil {
			return nil, fmt.Errorf("turn sync event: %w", err)
		}
		return EventItem{Kind: EventTurnSync, Sync: &p}, nil
	default:
		return nil, fmt.Errorf("unknown trajectory event %q", it.Event)
	}
}
