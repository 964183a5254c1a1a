package physics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/flickfooty/backend/internal/protocol"
)

var ErrUnknownBody = errors.New("unknown body")

// Kind tells strikers from the ball.
type Kind int

const (
	KindStriker Kind = iota
	KindBall
)

// Body is one disc on the pitch.
type Body struct {
	ID     string
	Kind   Kind
	TeamID int
	Radius float64
	Mass   float64
	Pos    Vec2
	Vel    Vec2
	Angle  float64
	Spin   float64 // radians per second
}

// EventKind classifies what happened during a step.
type EventKind string

const (
	EventCollision EventKind = "collision"
	EventWall      EventKind = "wall"
	EventGoal      EventKind = "goal"
)

// Event is a collision or a goal detected while stepping.
type Event struct {
	Kind      EventKind
	A, B      string
	Speed     float64
	ScoreTeam int
}

// World is a small disc simulator: strikers and one ball on a walled pitch
// with a goal mouth at each end. Team 0 defends the left goal.
type World struct {
	bodies []*Body
	index  map[string]*Body
	inGoal bool
}

// NewWorld lines both teams up in their formations. Unknown formation ids
// fall back to DefaultFormation.
func NewWorld(formation0, formation1 string) *World {
	w := &World{index: make(map[string]*Body)}
	for team, fid := range []string{formation0, formation1} {
		for i, p := range formationSpots(fid) {
			if team == 1 {
				p = NewVec2(PitchWidth-p.X, p.Y)
			}
			w.add(&Body{
				ID:     fmt.Sprintf("t%d-s%d", team, i),
				Kind:   KindStriker,
				TeamID: team,
				Radius: StrikerRadius,
				Mass:   StrikerMass,
				Pos:    p,
				Angle:  float64(team) * math.Pi,
			})
		}
	}
	w.add(&Body{
		ID:     BallID,
		Kind:   KindBall,
		TeamID: -1,
		Radius: BallRadius,
		Mass:   BallMass,
		Pos:    NewVec2(PitchWidth/2, PitchHeight/2),
	})
	return w
}

func (w *World) add(b *Body) {
	w.bodies = append(w.bodies, b)
	w.index[b.ID] = b
}

func (w *World) Body(id string) (*Body, bool) {
	b, ok := w.index[id]
	return b, ok
}

// IDs returns body ids in creation order.
func (w *World) IDs() []string {
	out := make([]string, len(w.bodies))
	for i, b := range w.bodies {
		out[i] = b.ID
	}
	return out
}

// StrikersOf returns the ids of a team's strikers.
func (w *World) StrikersOf(team int) []string {
	var out []string
	for _, b := range w.bodies {
		if b.Kind == KindStriker && b.TeamID == team {
			out = append(out, b.ID)
		}
	}
	return out
}

// ApplyForce flicks a striker. The force is an impulse, clamped to MaxImpulse.
func (w *World) ApplyForce(id string, force protocol.Vec) error {
	b, ok := w.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBody, id)
	}
	f := NewVec2(force.X, force.Y)
	if m := f.Magnitude(); m > MaxImpulse {
		f = f.Normalize().Times(MaxImpulse)
	}
	b.Vel = b.Vel.Plus(f.Times(1 / b.Mass))
	w.inGoal = false
	return nil
}

// Step advances the simulation by dt seconds and returns what happened.
func (w *World) Step(dt float64) []Event {
	if dt <= 0 {
		return nil
	}
	n := int(math.Ceil(dt / MaxSubstep))
	h := dt / float64(n)

	var events []Event
	for i := 0; i < n; i++ {
		events = w.substep(h, events)
	}
	return events
}

func (w *World) substep(h float64, events []Event) []Event {
	for _, b := range w.bodies {
		b.Pos = b.Pos.Plus(b.Vel.Times(h))
		b.Angle = fix(b.Angle + b.Spin*h)
	}

	for i := 0; i < len(w.bodies); i++ {
		for j := i + 1; j < len(w.bodies); j++ {
			if ev, hit := resolveDiscs(w.bodies[i], w.bodies[j]); hit {
				events = append(events, ev)
			}
		}
	}

	// Walls last so separation can never leave a disc off the pitch.
	for _, b := range w.bodies {
		if ev, hit := w.resolveWalls(b); hit {
			events = append(events, ev)
		}
	}

	if ev, scored := w.checkGoal(); scored {
		events = append(events, ev)
	}

	for _, b := range w.bodies {
		applyFriction(b, h)
	}
	return events
}

func inGoalMouth(y float64) bool {
	return math.Abs(y-PitchHeight/2) < GoalWidth/2
}

func (w *World) resolveWalls(b *Body) (Event, bool) {
	hit := false
	speed := b.Vel.Magnitude()

	// The ball may cross the end lines through the goal mouth.
	open := b.Kind == KindBall && inGoalMouth(b.Pos.Y)

	if !open && b.Pos.X-b.Radius < 0 {
		b.Pos.X = b.Radius
		b.Vel.X = fix(math.Abs(b.Vel.X) * WallRestitution)
		hit = true
	}
	if !open && b.Pos.X+b.Radius > PitchWidth {
		b.Pos.X = PitchWidth - b.Radius
		b.Vel.X = fix(-math.Abs(b.Vel.X) * WallRestitution)
		hit = true
	}
	if b.Pos.Y-b.Radius < 0 {
		b.Pos.Y = b.Radius
		b.Vel.Y = fix(math.Abs(b.Vel.Y) * WallRestitution)
		hit = true
	}
	if b.Pos.Y+b.Radius > PitchHeight {
		b.Pos.Y = PitchHeight - b.Radius
		b.Vel.Y = fix(-math.Abs(b.Vel.Y) * WallRestitution)
		hit = true
	}
	if !hit {
		return Event{}, false
	}
	return Event{Kind: EventWall, A: b.ID, Speed: speed}, true
}

// resolveDiscs separates two overlapping discs and exchanges momentum along
// the contact normal.
func resolveDiscs(a, b *Body) (Event, bool) {
	delta := b.Pos.Minus(a.Pos)
	dist := delta.Magnitude()
	minDist := a.Radius + b.Radius
	if dist >= minDist {
		return Event{}, false
	}

	n := delta.Normalize()
	if n.IsZero() {
		n = Vec2{X: 1}
	}
	invA, invB := 1/a.Mass, 1/b.Mass
	overlap := minDist - dist
	a.Pos = a.Pos.Minus(n.Times(overlap * invA / (invA + invB)))
	b.Pos = b.Pos.Plus(n.Times(overlap * invB / (invA + invB)))

	rel := b.Vel.Minus(a.Vel)
	closing := rel.Dot(n)
	if closing >= 0 {
		return Event{}, false
	}

	j := -(1 + DiscRestitution) * closing / (invA + invB)
	a.Vel = a.Vel.Minus(n.Times(j * invA))
	b.Vel = b.Vel.Plus(n.Times(j * invB))

	// Glancing hits set the discs spinning.
	tangent := rel.Dot(n.RightNormal())
	a.Spin = fix(a.Spin + tangent/(a.Radius*4))
	b.Spin = fix(b.Spin - tangent/(b.Radius*4))

	return Event{Kind: EventCollision, A: a.ID, B: b.ID, Speed: math.Abs(closing)}, true
}

func (w *World) checkGoal() (Event, bool) {
	if w.inGoal {
		return Event{}, false
	}
	ball := w.index[BallID]
	var team int
	switch {
	case ball.Pos.X < 0:
		team = 1
	case ball.Pos.X > PitchWidth:
		team = 0
	default:
		return Event{}, false
	}
	w.inGoal = true
	ball.Vel = Vec2{}
	ball.Spin = 0
	return Event{Kind: EventGoal, A: BallID, ScoreTeam: team}, true
}

func applyFriction(b *Body, h float64) {
	speed := b.Vel.Magnitude() - Friction*h
	if speed < MinSpeed {
		b.Vel = Vec2{}
	} else {
		b.Vel = b.Vel.Normalize().Times(speed)
	}

	b.Spin = fix(b.Spin * math.Pow(SpinDamping, h))
	if math.Abs(b.Spin) < 0.01 {
		b.Spin = 0
	}
}

// Settled reports whether every body has stopped.
func (w *World) Settled() bool {
	for _, b := range w.bodies {
		if !b.Vel.IsZero() || b.Spin != 0 {
			return false
		}
	}
	return true
}

// BodyStates returns the kinematic state of every body keyed by id.
func (w *World) BodyStates() map[string]protocol.BodyState {
	out := make(map[string]protocol.BodyState, len(w.bodies))
	for _, b := range w.bodies {
		out[b.ID] = protocol.BodyState{X: b.Pos.X, Y: b.Pos.Y, Angle: b.Angle, VX: b.Vel.X, VY: b.Vel.Y}
	}
	return out
}

// SetBodyState forces one body to the given state. Unknown ids are ignored
// so a peer running a newer lineup cannot break replay.
func (w *World) SetBodyState(id string, s protocol.BodyState) bool {
	b, ok := w.index[id]
	if !ok {
		return false
	}
	b.Pos = NewVec2(s.X, s.Y)
	b.Vel = NewVec2(s.VX, s.VY)
	b.Angle = fix(s.Angle)
	return true
}

// ZeroVelocities stops every body in place.
func (w *World) ZeroVelocities() {
	for _, b := range w.bodies {
		b.Vel = Vec2{}
		b.Spin = 0
	}
}

// Snapshot returns the end-of-turn positions.
func (w *World) Snapshot() protocol.Positions {
	var p protocol.Positions
	for _, b := range w.bodies {
		if b.Kind == KindBall {
			p.Ball = protocol.Vec{X: b.Pos.X, Y: b.Pos.Y}
			continue
		}
		p.Strikers = append(p.Strikers, protocol.StrikerPos{
			ID:    b.ID,
			Pos:   protocol.Vec{X: b.Pos.X, Y: b.Pos.Y},
			Angle: b.Angle,
		})
	}
	sort.Slice(p.Strikers, func(i, j int) bool { return p.Strikers[i].ID < p.Strikers[j].ID })
	return p
}

// ApplySnapshot places every listed body and stops the world.
func (w *World) ApplySnapshot(p protocol.Positions) {
	for _, s := range p.Strikers {
		if b, ok := w.index[s.ID]; ok {
			b.Pos = NewVec2(s.Pos.X, s.Pos.Y)
			b.Angle = fix(s.Angle)
		}
	}
	ball := w.index[BallID]
	ball.Pos = NewVec2(p.Ball.X, p.Ball.Y)
	w.ZeroVelocities()
	w.inGoal = false
}

// ResetKickoff puts every body back on its kickoff spot.
func (w *World) ResetKickoff(formation0, formation1 string) {
	fresh := NewWorld(formation0, formation1)
	for _, b := range fresh.bodies {
		if cur, ok := w.index[b.ID]; ok {
			cur.Pos, cur.Angle = b.Pos, b.Angle
		}
	}
	w.ZeroVelocities()
	w.inGoal = false
}
