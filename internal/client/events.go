package client

import "github.com/flickfooty/backend/internal/protocol"

// Events published on the Bus by Match.

type RosterChanged struct {
	Players []protocol.PlayerView
	Reason  string
}

type MatchStarted struct {
	TeamID      int
	CurrentTurn int
}

type TurnChanged struct {
	CurrentTurn int
	Mine        bool
}

// TurnEnded fires when a turn settles: locally once the snapshot is sent,
// remotely once TURN_SYNC has been applied.
type TurnEnded struct {
	Positions protocol.Positions
	Local     bool
}

type GoalScored struct {
	ScoreTeam int
	Scores    protocol.Scores
	Local     bool
}

type SoundPlayed struct {
	Name string
}

type Paused struct {
	TeamID int
	Reason string
}

type Resumed struct{}

type OpponentLeft struct {
	TeamID int
}

type SessionIssued struct {
	SessionID   string
	ResumeToken string
}

type RoomError struct {
	Msg string
}
