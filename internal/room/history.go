package room

import (
	"context"

	"github.com/flickfooty/backend/internal/protocol"
)

// History receives durable match events. Implementations are called from the
// room writer goroutine, never from the coordinator itself.
type History interface {
	MatchStarted(ctx context.Context, matchID, roomID string, players []Player) error
	GoalRecorded(ctx context.Context, matchID string, scoreTeam int, scores protocol.Scores, scoredBy string) error
}

// NopHistory discards everything; used when no database is configured.
type NopHistory struct{}

func (NopHistory) MatchStarted(context.Context, string, string, []Player) error { return nil }

func (NopHistory) GoalRecorded(context.Context, string, int, protocol.Scores, string) error {
	return nil
}

// TokenIssuer signs and checks resume tokens handed to joining sessions.
type TokenIssuer interface {
	Issue(roomID, userID string) (string, error)
	Verify(token, roomID, userID string) error
}
