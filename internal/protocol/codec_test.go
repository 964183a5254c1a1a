package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEncode(t *testing.T, m Message) []byte {
	t.Helper()
	data, err := Encode(m)
	require.NoError(t, err)
	return data
}

func TestDecodeMove(t *testing.T) {
	raw := []byte(`{"type":"MOVE","payload":{"id":"left_0","force":{"x":1,"y":0},"skills":["curve"]}}`)

	msg, err := Decode(raw)
	require.NoError(t, err)

	move, ok := msg.(Move)
	require.True(t, ok, "expected Move, got %T", msg)
	assert.Equal(t, "left_0", move.ID)
	assert.Equal(t, Vec{X: 1, Y: 0}, move.Force)
	assert.JSONEq(t, `["curve"]`, string(move.Skills))
	assert.Nil(t, move.NextTurn)
}

func TestDecodeWithoutPayload(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"LEAVE"}`))
	require.NoError(t, err)
	assert.Equal(t, Leave{}, msg)

	msg, err = Decode([]byte(`{"type":"AIM_END","payload":null}`))
	require.NoError(t, err)
	assert.Equal(t, AimEnd{}, msg)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"type":"TELEPORT","payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode([]byte(`{"type":"READY","payload":{"ready":"yes"}}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeTurnSyncIsFlat(t *testing.T) {
	data, err := Encode(TurnSync{Positions: Positions{
		Strikers: []StrikerPos{{ID: "left_0", Pos: Vec{X: 1.5, Y: -2}}},
		Ball:     Vec{X: 0, Y: 3},
	}})
	require.NoError(t, err)

	var env struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "TURN_SYNC", env.Type)
	assert.Contains(t, env.Payload, "strikers")
	assert.Contains(t, env.Payload, "ball")
}

func TestGoalScoresUseTeamKeys(t *testing.T) {
	data := mustEncode(t, Goal{NewScore: Scores{0: 2, 1: 1}, ScoreTeam: 0})
	assert.JSONEq(t, `{"type":"GOAL","payload":{"newScore":{"0":2,"1":1},"scoreTeam":0}}`, string(data))

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Goal{NewScore: Scores{0: 2, 1: 1}, ScoreTeam: 0}, msg)
}

func TestTrajectoryBatchMixesFramesAndEvents(t *testing.T) {
	in := TrajectoryBatch{Frames: []TrajectoryItem{
		{DT: 0.016, Bodies: map[string]BodyState{"ball": {X: 1, Y: 2, VX: 3}}},
		{Event: "SOUND", Data: json.RawMessage(`"kick"`)},
	}}

	msg, err := Decode(mustEncode(t, in))
	require.NoError(t, err)

	out := msg.(TrajectoryBatch)
	require.Len(t, out.Frames, 2)
	assert.Equal(t, 0.016, out.Frames[0].DT)
	assert.Equal(t, 3.0, out.Frames[0].Bodies["ball"].VX)
	assert.Equal(t, "SOUND", out.Frames[1].Event)
	assert.Zero(t, out.Frames[1].DT)
}

func TestIsRelayed(t *testing.T) {
	assert.True(t, IsRelayed(TypeTrajectoryBatch))
	assert.True(t, IsRelayed(TypeSkill))
	assert.False(t, IsRelayed(TypeMove))
	assert.False(t, IsRelayed(TypeGoal))
	assert.False(t, IsRelayed(TypeTurnSync))
}

func TestDecodeInboundKeepsRelayedPayload(t *testing.T) {
	raw := []byte(`{"type":"SKILL","payload":{"type":"fire","active":true,"teamId":"zero","extra":[1,2],"note":"a<b&c"}}`)

	msg, err := DecodeInbound(raw)
	require.NoError(t, err)
	relay, ok := msg.(Relay)
	require.True(t, ok, "expected Relay, got %T", msg)
	assert.Equal(t, TypeSkill, relay.MessageType())

	assert.Equal(t, string(raw), string(mustEncode(t, relay)))
}

func TestDecodeInboundTypesServerMessages(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type":"READY","payload":{"ready":true}}`))
	require.NoError(t, err)
	assert.Equal(t, Ready{Ready: true}, msg)

	_, err = DecodeInbound([]byte(`{"type":"NOPE"}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = DecodeInbound([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMoveWithNextTurnKeepsUnknownFields(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type":"MOVE","payload":{"id":"t0-s1","force":{"x":1,"y":0},"power":0.5,"nextTurn":0}}`))
	require.NoError(t, err)
	move := msg.(Move)
	assert.Equal(t, "t0-s1", move.ID)

	out, err := move.WithNextTurn(1)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"MOVE","payload":{"id":"t0-s1","force":{"x":1,"y":0},"power":0.5,"nextTurn":1}}`,
		string(mustEncode(t, out)))

	typed, err := Move{ID: "t0-s0"}.WithNextTurn(0)
	require.NoError(t, err)
	require.NotNil(t, typed.(Move).NextTurn)
	assert.Equal(t, 0, *typed.(Move).NextTurn)
}
