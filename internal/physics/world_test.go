package physics

import (
	"math"
	"testing"

	"github.com/flickfooty/backend/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runUntilSettled steps at 60 Hz and collects every event.
func runUntilSettled(t *testing.T, w *World) []Event {
	t.Helper()
	var events []Event
	for i := 0; i < 60*30; i++ {
		events = append(events, w.Step(1.0/60)...)
		if w.Settled() {
			return events
		}
	}
	t.Fatalf("world did not settle")
	return nil
}

func TestNewWorldLineup(t *testing.T) {
	w := NewWorld("2-1", "unknown")

	assert.Len(t, w.StrikersOf(0), 3)
	assert.Len(t, w.StrikersOf(1), 3)
	assert.Len(t, w.IDs(), 7)

	left, _ := w.Body("t0-s2")
	right, _ := w.Body("t1-s0")
	assert.Equal(t, 400.0, left.Pos.X)
	assert.Equal(t, PitchWidth-150, right.Pos.X)
	assert.True(t, w.Settled())
}

func TestFrictionStopsStriker(t *testing.T) {
	w := NewWorld(DefaultFormation, DefaultFormation)
	require.NoError(t, w.ApplyForce("t0-s0", protocol.Vec{X: 0, Y: 200}))
	assert.False(t, w.Settled())

	runUntilSettled(t, w)
	b, _ := w.Body("t0-s0")
	assert.Greater(t, b.Pos.Y, 300.0)
}

func TestApplyForceUnknownBody(t *testing.T) {
	w := NewWorld(DefaultFormation, DefaultFormation)
	assert.ErrorIs(t, w.ApplyForce("nope", protocol.Vec{X: 1}), ErrUnknownBody)
}

func TestWallBounceKeepsBodiesOnPitch(t *testing.T) {
	w := NewWorld(DefaultFormation, DefaultFormation)
	require.NoError(t, w.ApplyForce("t0-s1", protocol.Vec{X: 0, Y: -MaxImpulse}))

	events := runUntilSettled(t, w)

	var walls int
	for _, ev := range events {
		if ev.Kind == EventWall {
			walls++
		}
	}
	assert.Greater(t, walls, 0)
	for _, id := range w.IDs() {
		b, _ := w.Body(id)
		assert.GreaterOrEqual(t, b.Pos.Y, b.Radius-1e-6, id)
		assert.LessOrEqual(t, b.Pos.Y, PitchHeight-b.Radius+1e-6, id)
	}
}

func TestStrikerHitsBall(t *testing.T) {
	w := NewWorld(DefaultFormation, DefaultFormation)
	striker, _ := w.Body("t0-s0")
	ball, _ := w.Body(BallID)
	striker.Pos = NewVec2(ball.Pos.X-100, ball.Pos.Y)

	require.NoError(t, w.ApplyForce("t0-s0", protocol.Vec{X: 1200}))
	events := runUntilSettled(t, w)

	var hit bool
	for _, ev := range events {
		if ev.Kind == EventCollision && (ev.A == BallID || ev.B == BallID) {
			hit = true
		}
	}
	assert.True(t, hit)
	assert.Greater(t, ball.Pos.X, PitchWidth/2)
}

func TestBallIntoRightGoalScoresForTeamZero(t *testing.T) {
	w := NewWorld(DefaultFormation, DefaultFormation)
	ball, _ := w.Body(BallID)
	ball.Pos = NewVec2(PitchWidth-60, PitchHeight/2)
	keeper, _ := w.Body("t1-s0")
	keeper.Pos = NewVec2(keeper.Pos.X, 40)

	require.NoError(t, w.ApplyForce(BallID, protocol.Vec{X: 400}))
	events := runUntilSettled(t, w)

	var goals []Event
	for _, ev := range events {
		if ev.Kind == EventGoal {
			goals = append(goals, ev)
		}
	}
	require.Len(t, goals, 1)
	assert.Equal(t, 0, goals[0].ScoreTeam)
}

func TestSnapshotRoundTripStopsWorld(t *testing.T) {
	w := NewWorld(DefaultFormation, DefaultFormation)
	require.NoError(t, w.ApplyForce("t1-s1", protocol.Vec{X: -500, Y: 100}))
	w.Step(0.1)
	snap := w.Snapshot()

	other := NewWorld(DefaultFormation, DefaultFormation)
	other.ApplySnapshot(snap)
	assert.True(t, other.Settled())
	assert.Equal(t, snap, other.Snapshot())
}

func TestSetBodyState(t *testing.T) {
	w := NewWorld(DefaultFormation, DefaultFormation)

	ok := w.SetBodyState(BallID, protocol.BodyState{X: 10.123456, Y: 20, VX: 5, Angle: math.Pi})
	require.True(t, ok)
	assert.False(t, w.SetBodyState("ghost", protocol.BodyState{}))

	s := w.BodyStates()[BallID]
	assert.Equal(t, 10.1235, s.X)
	assert.Equal(t, 5.0, s.VX)
	assert.Equal(t, fix(math.Pi), s.Angle)

	w.ZeroVelocities()
	assert.True(t, w.Settled())
}

func TestVec2FixedPrecision(t *testing.T) {
	v := NewVec2(1.00004, 2.00006)
	assert.Equal(t, Vec2{X: 1, Y: 2.0001}, v)
	assert.Equal(t, 5.0, NewVec2(3, 4).Magnitude())
	assert.Equal(t, Vec2{}, Vec2{}.Normalize())
	assert.Equal(t, 0.0, fix(math.NaN()))
}
