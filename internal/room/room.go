package room

import (
	"time"

	"github.com/flickfooty/backend/internal/protocol"
)

// Status is the lifecycle state of a match room.
type Status string

const (
	StatusWaiting Status = protocol.StatusWaiting
	StatusPlaying Status = protocol.StatusPlaying
)

// MaxPlayers is the room capacity; a third identity is rejected.
const MaxPlayers = 2

// Player is a durable roster entry. It survives disconnects so the same
// userId can reclaim its team.
type Player struct {
	ID          string `json:"id"`
	Nickname    string `json:"nickname"`
	Avatar      string `json:"avatar"`
	TeamID      int    `json:"teamId"`
	Ready       bool   `json:"ready"`
	FormationID string `json:"formationId,omitempty"`
}

// Room is the canonical state of one match. It is owned by a single
// Coordinator and is also the persisted snapshot shape.
type Room struct {
	ID            string              `json:"roomId"`
	Players       []*Player           `json:"players"`
	Status        Status              `json:"status"`
	CurrentTurn   int                 `json:"currentTurn"`
	Scores        protocol.Scores     `json:"scores"`
	LastPositions *protocol.Positions `json:"lastPositions,omitempty"`
	MatchID       string              `json:"matchId,omitempty"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// New creates an empty waiting room.
func New(id string) *Room {
	return &Room{
		ID:      id,
		Players: make([]*Player, 0, MaxPlayers),
		Status:  StatusWaiting,
		Scores:  protocol.Scores{0: 0, 1: 0},
	}
}

// Player looks up a roster entry by userId.
func (r *Room) Player(userID string) *Player {
	for _, p := range r.Players {
		if p.ID == userID {
			return p
		}
	}
	return nil
}

// Full reports whether the roster has no free slot for a new identity.
func (r *Room) Full() bool {
	return len(r.Players) >= MaxPlayers
}

// freeTeam returns the team a new player gets: 0 in an empty room, otherwise
// the complement of the existing player's team.
func (r *Room) freeTeam() int {
	if len(r.Players) == 0 {
		return 0
	}
	return otherTeam(r.Players[0].TeamID)
}

// AllReady is true only with a full roster where everyone is ready.
func (r *Room) AllReady() bool {
	if len(r.Players) != MaxPlayers {
		return false
	}
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Clone returns a deep copy suitable for handing to another goroutine.
func (r *Room) Clone() *Room {
	out := *r
	out.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		cp := *p
		out.Players[i] = &cp
	}
	out.Scores = r.Scores.Clone()
	if r.LastPositions != nil {
		lp := *r.LastPositions
		lp.Strikers = append([]protocol.StrikerPos(nil), r.LastPositions.Strikers...)
		out.LastPositions = &lp
	}
	return &out
}

func otherTeam(team int) int {
	return 1 - team
}
