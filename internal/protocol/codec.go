package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

// Decode parses one transport frame into its typed message.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	msg := newMessage(env.Type)
	if msg == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
		}
	}

	// newMessage hands out pointers so the payload can be filled in place;
	// callers switch on value types.
	return deref(msg), nil
}

// DecodeInbound parses a frame received from a player. Pass-through types
// come back as Relay with their payload untouched and unvalidated; MOVE keeps
// its raw payload so the server can forward it with nextTurn added.
func DecodeInbound(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if IsRelayed(env.Type) {
		return Relay{Type: env.Type, Payload: env.Payload}, nil
	}

	msg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if mv, ok := msg.(Move); ok {
		mv.Raw = env.Payload
		return mv, nil
	}
	return msg, nil
}

// Encode wraps a typed message in its envelope.
func Encode(m Message) ([]byte, error) {
	if r, ok := m.(Relay); ok {
		return encodeRelay(r)
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.MessageType(), err)
	}
	return json.Marshal(Envelope{Type: m.MessageType(), Payload: payload})
}

// encodeRelay skips HTML escaping so the payload goes out as it came in.
func encodeRelay(r Relay) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Envelope{Type: r.Type, Payload: r.Payload}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.Type, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// WithNextTurn returns the MOVE as it was received with nextTurn set, keeping
// every field the sender included. Moves built locally are re-encoded.
func (m Move) WithNextTurn(next int) (Message, error) {
	if len(m.Raw) == 0 {
		m.NextTurn = &next
		return m, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(m.Raw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: MOVE payload is not an object", ErrMalformed)
	}
	fields["nextTurn"], _ = json.Marshal(next)
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return Relay{Type: TypeMove, Payload: payload}, nil
}

func newMessage(t Type) Message {
	switch t {
	case TypePlayerJoined:
		return &PlayerJoined{}
	case TypeReady:
		return &Ready{}
	case TypeStart:
		return &Start{}
	case TypeMove:
		return &Move{}
	case TypeAimStart:
		return &AimStart{}
	case TypeAimUpdate:
		return &AimUpdate{}
	case TypeAimEnd:
		return &AimEnd{}
	case TypeTrajectoryBatch:
		return &TrajectoryBatch{}
	case TypeTurnSync:
		return &TurnSync{}
	case TypeGoal:
		return &Goal{}
	case TypeSkill:
		return &Skill{}
	case TypeFairPlayMove:
		return &FairPlayMove{}
	case TypeLeave:
		return &Leave{}
	case TypePlayerLeftGame:
		return &PlayerLeftGame{}
	case TypePlayerOffline:
		return &PlayerOffline{}
	case TypeGameResume:
		return &GameResume{}
	case TypeSession:
		return &Session{}
	case TypeError:
		return &Error{}
	}
	return nil
}

func deref(m Message) Message {
	switch v := m.(type) {
	case *PlayerJoined:
		return *v
	case *Ready:
		return *v
	case *Start:
		return *v
	case *Move:
		return *v
	case *AimStart:
		return *v
	case *AimUpdate:
		return *v
	case *AimEnd:
		return *v
	case *TrajectoryBatch:
		return *v
	case *TurnSync:
		return *v
	case *Goal:
		return *v
	case *Skill:
		return *v
	case *FairPlayMove:
		return *v
	case *Leave:
		return *v
	case *PlayerLeftGame:
		return *v
	case *PlayerOffline:
		return *v
	case *GameResume:
		return *v
	case *Session:
		return *v
	case *Error:
		return *v
	}
	return m
}

// IsRelayed reports whether the server forwards this client message to the
// peer without touching room state.
func IsRelayed(t Type) bool {
	switch t {
	case TypeAimStart, TypeAimUpdate, TypeAimEnd, TypeTrajectoryBatch, TypeFairPlayMove, TypeSkill:
		return true
	}
	return false
}
