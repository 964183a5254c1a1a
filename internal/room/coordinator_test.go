package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flickfooty/backend/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu     sync.Mutex
	sent   map[string][]protocol.Message
	raw    map[string][][]byte
	closed map[string]int
	// gate, when set, holds every Send until it is closed.
	gate chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sent:   make(map[string][]protocol.Message),
		raw:    make(map[string][][]byte),
		closed: make(map[string]int),
	}
}

func (f *fakeTransport) Send(sessionID string, data []byte) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw[sessionID] = append(f.raw[sessionID], data)
	// Relayed payloads may not fit the typed structs; keep those raw only.
	if msg, err := protocol.Decode(data); err == nil {
		f.sent[sessionID] = append(f.sent[sessionID], msg)
	}
}

func (f *fakeTransport) hold() chan struct{} {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	return gate
}

// lastRaw returns the last frame of type t sent to sessionID, as bytes.
func (f *fakeTransport) lastRaw(sessionID string, t protocol.Type) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, data := range f.raw[sessionID] {
		var env protocol.Envelope
		if json.Unmarshal(data, &env) == nil && env.Type == t {
			out = data
		}
	}
	return out
}

func (f *fakeTransport) Close(sessionID string, code int, _ string) {
	f.mu.Lock()
	f.closed[sessionID] = code
	f.mu.Unlock()
}

func (f *fakeTransport) of(sessionID string, t protocol.Type) []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Message
	for _, m := range f.sent[sessionID] {
		if m.MessageType() == t {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) last(sessionID string, t protocol.Type) protocol.Message {
	msgs := f.of(sessionID, t)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (f *fakeTransport) closeCode(sessionID string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.closed[sessionID]
	return code, ok
}

type fakeHistory struct {
	mu      sync.Mutex
	started []string
	goals   []protocol.Scores
}

func (h *fakeHistory) MatchStarted(_ context.Context, matchID, _ string, _ []Player) error {
	h.mu.Lock()
	h.started = append(h.started, matchID)
	h.mu.Unlock()
	return nil
}

func (h *fakeHistory) GoalRecorded(_ context.Context, _ string, _ int, scores protocol.Scores, _ string) error {
	h.mu.Lock()
	h.goals = append(h.goals, scores)
	h.mu.Unlock()
	return nil
}

func (h *fakeHistory) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.started), len(h.goals)
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	transport *fakeTransport
	store     *MemoryStore
	history   *fakeHistory
	manager   *Manager
	coord     *Coordinator
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		ctx:       context.Background(),
		transport: newFakeTransport(),
		store:     NewMemoryStore(),
		history:   &fakeHistory{},
	}
	h.manager = NewManager(h.store, h.history, h.transport, opts)
	t.Cleanup(func() { h.manager.Shutdown(context.Background()) })
	return h
}

func (h *harness) join(sessionID, userID string) JoinResult {
	h.t.Helper()
	c, res, err := h.manager.Join(h.ctx, "1234", JoinRequest{SessionID: sessionID, UserID: userID, Nickname: userID})
	require.NoError(h.t, err)
	h.coord = c
	return res
}

func (h *harness) submit(sessionID string, msg protocol.Message) {
	h.t.Helper()
	require.NoError(h.t, h.coord.Submit(sessionID, msg))
}

// state doubles as a barrier: it runs after every previously submitted message.
func (h *harness) state() *Room {
	h.t.Helper()
	r, err := h.coord.Snapshot(h.ctx)
	require.NoError(h.t, err)
	return r
}

func (h *harness) startMatch() {
	h.t.Helper()
	h.join("s-a", "alice")
	h.join("s-b", "bob")
	h.submit("s-a", protocol.Ready{Ready: true})
	h.submit("s-b", protocol.Ready{Ready: true, FormationID: "4-4-2"})
	require.Equal(h.t, StatusPlaying, h.state().Status)
}

func TestJoinAssignsComplementaryTeams(t *testing.T) {
	h := newHarness(t, Options{})

	a := h.join("s-a", "alice")
	b := h.join("s-b", "bob")

	assert.Equal(t, 0, a.Player.TeamID)
	assert.Equal(t, 1, b.Player.TeamID)
	assert.False(t, a.Reconnect)

	roster := h.transport.last("s-a", protocol.TypePlayerJoined).(protocol.PlayerJoined)
	require.Len(t, roster.Players, 2)
	assert.Equal(t, protocol.StatusWaiting, roster.Status)
	assert.True(t, roster.Players[1].Online)

	require.Eventually(t, func() bool { return h.store.Has("1234") }, time.Second, 5*time.Millisecond)
}

func TestMatchStartAndTurnExclusivity(t *testing.T) {
	h := newHarness(t, Options{})
	h.startMatch()

	for _, s := range []string{"s-a", "s-b"} {
		start, ok := h.transport.last(s, protocol.TypeStart).(protocol.Start)
		require.True(t, ok, "session %s missed START", s)
		assert.Equal(t, 0, start.CurrentTurn)
	}

	h.submit("s-a", protocol.Move{ID: "left_0", Force: protocol.Vec{X: 1, Y: 0}})
	assert.Equal(t, 1, h.state().CurrentTurn)

	for _, s := range []string{"s-a", "s-b"} {
		moves := h.transport.of(s, protocol.TypeMove)
		require.Len(t, moves, 1)
		move := moves[0].(protocol.Move)
		assert.Equal(t, "left_0", move.ID)
		require.NotNil(t, move.NextTurn)
		assert.Equal(t, 1, *move.NextTurn)
	}

	// Team 0 is no longer on turn: dropped without feedback.
	h.submit("s-a", protocol.Move{ID: "left_1", Force: protocol.Vec{X: 0, Y: 1}})
	assert.Equal(t, 1, h.state().CurrentTurn)
	assert.Len(t, h.transport.of("s-b", protocol.TypeMove), 1)
	assert.Empty(t, h.transport.of("s-a", protocol.TypeError))

	h.submit("s-b", protocol.Move{ID: "right_0", Force: protocol.Vec{X: -1, Y: 0}})
	assert.Equal(t, 0, h.state().CurrentTurn)
}

func TestMoveBeforeStartIsDropped(t *testing.T) {
	h := newHarness(t, Options{})
	h.join("s-a", "alice")
	h.join("s-b", "bob")
	h.submit("s-a", protocol.Ready{Ready: true})

	h.submit("s-a", protocol.Move{ID: "left_0"})
	r := h.state()
	assert.Equal(t, StatusWaiting, r.Status)
	assert.Equal(t, 0, r.CurrentTurn)
	assert.Empty(t, h.transport.of("s-b", protocol.TypeMove))
}

func TestReadyResetsMatchState(t *testing.T) {
	h := newHarness(t, Options{})
	h.startMatch()

	r := h.state()
	assert.Equal(t, protocol.Scores{0: 0, 1: 0}, r.Scores)
	assert.Nil(t, r.LastPositions)
	assert.NotEmpty(t, r.MatchID)
	assert.Equal(t, "4-4-2", r.Player("bob").FormationID)

	require.Eventually(t, func() bool {
		started, _ := h.history.counts()
		return started == 1
	}, time.Second, 5*time.Millisecond)
}

func TestThirdIdentityIsRejected(t *testing.T) {
	h := newHarness(t, Options{})
	h.join("s-a", "alice")
	h.join("s-b", "bob")

	_, _, err := h.manager.Join(h.ctx, "1234", JoinRequest{SessionID: "s-c", UserID: "carol"})
	require.ErrorIs(t, err, ErrRoomFull)

	errMsg, ok := h.transport.last("s-c", protocol.TypeError).(protocol.Error)
	require.True(t, ok)
	assert.NotEmpty(t, errMsg.Msg)

	code, closed := h.transport.closeCode("s-c")
	assert.True(t, closed)
	assert.Equal(t, protocol.CloseRoomFull, code)
	assert.Len(t, h.state().Players, 2)
}

func TestRelayedMessagesSkipSenderAndKeepState(t *testing.T) {
	h := newHarness(t, Options{})
	h.startMatch()
	before := h.state()

	h.submit("s-a", protocol.TrajectoryBatch{Frames: []protocol.TrajectoryItem{{DT: 0.016}}})
	h.submit("s-a", protocol.AimStart{StartPos: protocol.Vec{X: 1}})
	h.submit("s-a", protocol.Skill{Type: "giant", Active: true, TeamID: 0})
	after := h.state()

	assert.Len(t, h.transport.of("s-b", protocol.TypeTrajectoryBatch), 1)
	assert.Len(t, h.transport.of("s-b", protocol.TypeAimStart), 1)
	assert.Len(t, h.transport.of("s-b", protocol.TypeSkill), 1)
	assert.Empty(t, h.transport.of("s-a", protocol.TypeTrajectoryBatch))
	assert.Equal(t, before.CurrentTurn, after.CurrentTurn)
	assert.Equal(t, before.Scores, after.Scores)
}

func TestRelayForwardsPayloadBytesUnchanged(t *testing.T) {
	h := newHarness(t, Options{})
	h.startMatch()

	frames := [][]byte{
		[]byte(`{"type":"SKILL","payload":{"type":"fire","active":true,"teamId":0,"level":3,"duration":5}}`),
		[]byte(`{"type":"FAIR_PLAY_MOVE","payload":{"id":"t0-s1","teamId":"zero"}}`),
	}
	for _, frame := range frames {
		msg, err := protocol.DecodeInbound(frame)
		require.NoError(t, err)
		h.submit("s-a", msg)
	}
	h.state()

	assert.Equal(t, string(frames[0]), string(h.transport.lastRaw("s-b", protocol.TypeSkill)))
	assert.Equal(t, string(frames[1]), string(h.transport.lastRaw("s-b", protocol.TypeFairPlayMove)))
	assert.Nil(t, h.transport.lastRaw("s-a", protocol.TypeSkill))
}

func TestMoveRelayKeepsUnknownFields(t *testing.T) {
	h := newHarness(t, Options{})
	h.startMatch()

	msg, err := protocol.DecodeInbound([]byte(`{"type":"MOVE","payload":{"id":"t0-s1","force":{"x":3,"y":-1},"power":0.8}}`))
	require.NoError(t, err)
	h.submit("s-a", msg)
	assert.Equal(t, 1, h.state().CurrentTurn)

	for _, sid := range []string{"s-a", "s-b"} {
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(h.transport.lastRaw(sid, protocol.TypeMove), &env))
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(env.Payload, &payload))
		assert.Equal(t, 0.8, payload["power"])
		assert.EqualValues(t, 1, payload["nextTurn"])
		assert.Equal(t, "t0-s1", payload["id"])
	}
}

func TestJoinTimeoutDoesNotLeaveGhostSession(t *testing.T) {
	h := newHarness(t, Options{})
	h.join("s-a", "alice")

	gate := h.transport.hold()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.coord.Join(ctx, JoinRequest{SessionID: "s-b", UserID: "bob", Nickname: "bob"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(gate)

	assert.Eventually(t, func() bool {
		off, ok := h.transport.last("s-a", protocol.TypePlayerOffline).(protocol.PlayerOffline)
		return ok && off.TeamID == 1
	}, time.Second, 10*time.Millisecond)
}

func TestGoalAndTurnSyncArePersisted(t *testing.T) {
	h := newHarness(t, Options{})
	h.startMatch()

	h.submit("s-a", protocol.Goal{NewScore: protocol.Scores{0: 1, 1: 0}, ScoreTeam: 0})
	h.submit("s-a", protocol.TurnSync{Positions: protocol.Positions{
		Strikers: []protocol.StrikerPos{{ID: "left_0", Pos: protocol.Vec{X: 3, Y: 4}}},
		Ball:     protocol.Vec{X: 0, Y: 0},
	}})

	r := h.state()
	assert.Equal(t, protocol.Scores{0: 1, 1: 0}, r.Scores)
	require.NotNil(t, r.LastPositions)
	assert.Equal(t, "left_0", r.LastPositions.Strikers[0].ID)

	assert.Len(t, h.transport.of("s-b", protocol.TypeGoal), 1)
	assert.Len(t, h.transport.of("s-b", protocol.TypeTurnSync), 1)

	require.Eventually(t, func() bool {
		stored, err := h.store.Load(h.ctx, "1234")
		return err == nil && stored.LastPositions != nil && stored.Scores[0] == 1
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, goals := h.history.counts()
		return goals == 1
	}, time.Second, 5*time.Millisecond)
}

func TestLeaveKeepsRoster(t *testing.T) {
	h := newHarness(t, Options{})
	h.startMatch()

	h.submit("s-b", protocol.Leave{})
	r := h.state()

	left, ok := h.transport.last("s-a", protocol.TypePlayerLeftGame).(protocol.PlayerLeftGame)
	require.True(t, ok)
	assert.Equal(t, 1, left.TeamID)
	assert.NotNil(t, r.Player("bob"))
}

func TestDisconnectAndReconnectResumesMatch(t *testing.T) {
	h := newHarness(t, Options{IdleGrace: time.Minute})
	h.startMatch()

	h.submit("s-a", protocol.Move{ID: "left_0", Force: protocol.Vec{X: 1}})
	h.submit("s-a", protocol.Goal{NewScore: protocol.Scores{0: 1, 1: 0}, ScoreTeam: 0})
	before := h.state()

	require.NoError(t, h.coord.Disconnect("s-b"))
	h.state()

	offline, ok := h.transport.last("s-a", protocol.TypePlayerOffline).(protocol.PlayerOffline)
	require.True(t, ok)
	assert.Equal(t, 1, offline.TeamID)

	res := h.join("s-b2", "bob")
	assert.True(t, res.Reconnect)
	assert.Equal(t, 1, res.Player.TeamID)
	assert.True(t, res.Player.Ready)

	resume, ok := h.transport.last("s-b2", protocol.TypeGameResume).(protocol.GameResume)
	require.True(t, ok)
	assert.Equal(t, before.CurrentTurn, resume.CurrentTurn)
	assert.Equal(t, before.Scores, resume.Scores)
	assert.Equal(t, protocol.StatusPlaying, resume.Status)

	joined := h.transport.last("s-a", protocol.TypePlayerJoined).(protocol.PlayerJoined)
	require.NotNil(t, joined.TeamID)
	assert.Equal(t, 1, *joined.TeamID)
	assert.Equal(t, "reconnect", joined.Reason)
}

func TestSecondSocketReplacesFirst(t *testing.T) {
	h := newHarness(t, Options{})
	h.join("s-a", "alice")
	h.join("s-a2", "alice")

	code, closed := h.transport.closeCode("s-a")
	assert.True(t, closed)
	assert.Equal(t, protocol.CloseNormal, code)

	// The late close of the replaced socket must not mark alice offline.
	require.NoError(t, h.coord.Disconnect("s-a"))
	r := h.state()
	assert.Empty(t, h.transport.of("s-a2", protocol.TypePlayerOffline))
	assert.Len(t, r.Players, 1)
}

func TestIdleRoomIsDestroyed(t *testing.T) {
	h := newHarness(t, Options{IdleGrace: 30 * time.Millisecond})
	h.join("s-a", "alice")
	c := h.coord

	require.NoError(t, c.Disconnect("s-a"))

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("room was not destroyed after the grace period")
	}
	require.Eventually(t, func() bool {
		return !h.manager.Live("1234") && !h.store.Has("1234")
	}, time.Second, 5*time.Millisecond)
	assert.True(t, errors.Is(c.Submit("s-a", protocol.Leave{}), ErrRoomClosed))
}

func TestReattachCancelsDestruction(t *testing.T) {
	h := newHarness(t, Options{IdleGrace: 80 * time.Millisecond})
	h.startMatch()
	c := h.coord

	require.NoError(t, c.Disconnect("s-a"))
	require.NoError(t, c.Disconnect("s-b"))
	h.state()

	time.Sleep(20 * time.Millisecond)
	res := h.join("s-b2", "bob")
	assert.True(t, res.Reconnect)
	assert.Same(t, c, h.coord)

	select {
	case <-c.Done():
		t.Fatal("room destroyed despite a new attachment")
	case <-time.After(200 * time.Millisecond):
	}

	resume := h.transport.last("s-b2", protocol.TypeGameResume).(protocol.GameResume)
	assert.Equal(t, protocol.Scores{0: 0, 1: 0}, resume.Scores)
}

func TestRoomRehydratesFromStore(t *testing.T) {
	h := newHarness(t, Options{IdleGrace: time.Minute})
	r := New("1234")
	r.Players = []*Player{
		{ID: "alice", TeamID: 0, Ready: true},
		{ID: "bob", TeamID: 1, Ready: true},
	}
	r.Status = StatusPlaying
	r.CurrentTurn = 1
	r.Scores = protocol.Scores{0: 2, 1: 3}
	require.NoError(t, h.store.Save(h.ctx, r))

	res := h.join("s-b", "bob")
	assert.True(t, res.Reconnect)

	resume := h.transport.last("s-b", protocol.TypeGameResume).(protocol.GameResume)
	assert.Equal(t, 1, resume.CurrentTurn)
	assert.Equal(t, protocol.Scores{0: 2, 1: 3}, resume.Scores)
}

type fakeTokens struct{}

func (fakeTokens) Issue(roomID, userID string) (string, error) { return roomID + "/" + userID, nil }

func (fakeTokens) Verify(token, roomID, userID string) error {
	if token != roomID+"/"+userID {
		return errors.New("bad token")
	}
	return nil
}

func TestResumeTokenRequiredForReconnect(t *testing.T) {
	h := newHarness(t, Options{Tokens: fakeTokens{}, RequireResumeToken: true})
	h.join("s-a", "alice")

	session, ok := h.transport.last("s-a", protocol.TypeSession).(protocol.Session)
	require.True(t, ok)
	assert.Equal(t, "1234/alice", session.ResumeToken)

	_, _, err := h.manager.Join(h.ctx, "1234", JoinRequest{SessionID: "s-x", UserID: "alice", ResumeToken: "forged"})
	require.ErrorIs(t, err, ErrInvalidToken)
	code, _ := h.transport.closeCode("s-x")
	assert.Equal(t, protocol.CloseInvalidToken, code)

	_, res, err := h.manager.Join(h.ctx, "1234", JoinRequest{SessionID: "s-a2", UserID: "alice", ResumeToken: session.ResumeToken})
	require.NoError(t, err)
	assert.True(t, res.Reconnect)
}
