// Package protocol defines the JSON wire format shared by the room server and
// the game client. Every transport frame carries one Envelope; payloads are
// decoded once at the edge into the typed messages below.
package protocol

import "encoding/json"

// Type is the envelope discriminator.
type Type string

const (
	TypePlayerJoined    Type = "PLAYER_JOINED"
	TypeReady           Type = "READY"
	TypeStart           Type = "START"
	TypeMove            Type = "MOVE"
	TypeAimStart        Type = "AIM_START"
	TypeAimUpdate       Type = "AIM_UPDATE"
	TypeAimEnd          Type = "AIM_END"
	TypeTrajectoryBatch Type = "TRAJECTORY_BATCH"
	TypeTurnSync        Type = "TURN_SYNC"
	TypeGoal            Type = "GOAL"
	TypeSkill           Type = "SKILL"
	TypeFairPlayMove    Type = "FAIR_PLAY_MOVE"
	TypeLeave           Type = "LEAVE"
	TypePlayerLeftGame  Type = "PLAYER_LEFT_GAME"
	TypePlayerOffline   Type = "PLAYER_OFFLINE"
	TypeGameResume      Type = "GAME_RESUME"
	TypeSession         Type = "SESSION"
	TypeError           Type = "ERROR"
)

// Close codes sent with a rejected connection.
const (
	CloseNormal       = 1000
	CloseRoomFull     = 4001
	CloseInvalidToken = 4003
	CloseRoomCleared  = 4004
)

// Room status values as they appear on the wire.
const (
	StatusWaiting = "WAITING"
	StatusPlaying = "PLAYING"
)

// Envelope is the outer frame of every message.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is implemented by every typed payload.
type Message interface {
	MessageType() Type
}

type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BodyState is the kinematic state of one simulated body.
type BodyState struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
}

type StrikerPos struct {
	ID    string  `json:"id"`
	Pos   Vec     `json:"pos"`
	Angle float64 `json:"angle,omitempty"`
}

// Positions is an authoritative end-of-turn snapshot.
type Positions struct {
	Strikers []StrikerPos `json:"strikers"`
	Ball     Vec          `json:"ball"`
}

// Scores maps teamId to goals.
type Scores map[int]int

// Clone returns an independent copy.
func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type PlayerView struct {
	ID          string `json:"id"`
	Nickname    string `json:"nickname"`
	Avatar      string `json:"avatar"`
	TeamID      int    `json:"teamId"`
	Ready       bool   `json:"ready"`
	FormationID string `json:"formationId,omitempty"`
	Online      bool   `json:"online"`
}

// TrajectoryItem is one entry of a TRAJECTORY_BATCH: either a physics frame
// (Bodies set, DT > 0) or an in-band event (Event set, DT == 0).
type TrajectoryItem struct {
	DT     float64              `json:"dt"`
	Bodies map[string]BodyState `json:"bodies,omitempty"`
	Event  string               `json:"event,omitempty"`
	Data   json.RawMessage      `json:"data,omitempty"`
}

type PlayerJoined struct {
	Players []PlayerView `json:"players"`
	Status  string       `json:"status"`
	TeamID  *int         `json:"teamId,omitempty"`
	Reason  string       `json:"reason,omitempty"`
}

type Ready struct {
	Ready       bool   `json:"ready"`
	FormationID string `json:"formationId,omitempty"`
}

type Start struct {
	CurrentTurn int          `json:"currentTurn"`
	Players     []PlayerView `json:"players,omitempty"`
}

type Move struct {
	ID       string          `json:"id"`
	Force    Vec             `json:"force"`
	Skills   json.RawMessage `json:"skills,omitempty"`
	NextTurn *int            `json:"nextTurn,omitempty"`

	// Raw is the payload as received, set by DecodeInbound.
	Raw json.RawMessage `json:"-"`
}

type AimStart struct {
	StartPos Vec `json:"startPos"`
}

type AimUpdate struct {
	Vector Vec `json:"vector"`
}

type AimEnd struct{}

type TrajectoryBatch struct {
	Frames []TrajectoryItem `json:"frames"`
}

type TurnSync struct {
	Positions
}

type Goal struct {
	NewScore  Scores `json:"newScore"`
	ScoreTeam int    `json:"scoreTeam"`
}

type Skill struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
	TeamID int    `json:"teamId"`
}

type FairPlayMove struct {
	ID       string  `json:"id"`
	End      Vec     `json:"end"`
	Duration float64 `json:"duration"`
}

type Leave struct{}

type PlayerLeftGame struct {
	TeamID int `json:"teamId"`
}

type PlayerOffline struct {
	TeamID int    `json:"teamId"`
	Reason string `json:"reason,omitempty"`
}

type GameResume struct {
	Status      string       `json:"status"`
	CurrentTurn int          `json:"currentTurn"`
	Scores      Scores       `json:"scores"`
	Positions   *Positions   `json:"positions,omitempty"`
	Players     []PlayerView `json:"players"`
}

// Relay is a client message the server forwards without interpreting it.
type Relay struct {
	Type    Type
	Payload json.RawMessage
}

type Session struct {
	SessionID   string `json:"sessionId"`
	ResumeToken string `json:"resumeToken,omitempty"`
}

type Error struct {
	Msg string `json:"msg"`
}

func (PlayerJoined) MessageType() Type    { return TypePlayerJoined }
func (Ready) MessageType() Type           { return TypeReady }
func (Start) MessageType() Type           { return TypeStart }
func (Move) MessageType() Type            { return TypeMove }
func (AimStart) MessageType() Type        { return TypeAimStart }
func (AimUpdate) MessageType() Type       { return TypeAimUpdate }
func (AimEnd) MessageType() Type          { return TypeAimEnd }
func (TrajectoryBatch) MessageType() Type { return TypeTrajectoryBatch }
func (TurnSync) MessageType() Type        { return TypeTurnSync }
func (Goal) MessageType() Type            { return TypeGoal }
func (Skill) MessageType() Type           { return TypeSkill }
func (FairPlayMove) MessageType() Type    { return TypeFairPlayMove }
func (Leave) MessageType() Type           { return TypeLeave }
func (PlayerLeftGame) MessageType() Type  { return TypePlayerLeftGame }
func (PlayerOffline) MessageType() Type   { return TypePlayerOffline }
func (GameResume) MessageType() Type      { return TypeGameResume }
func (Session) MessageType() Type         { return TypeSession }
func (Error) MessageType() Type           { return TypeError }
func (r Relay) MessageType() Type         { return r.Type }
