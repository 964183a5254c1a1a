package history

import (
	"context"
	"fmt"

	"github.com/flickfooty/backend/internal/protocol"
	"github.com/flickfooty/backend/internal/room"
	"github.com/jmoiron/sqlx"
)

// Match is one row of the matches table.
type Match struct {
	ID         string `db:"id" json:"id"`
	RoomID     string `db:"room_id" json:"roomId"`
	Team0User  string `db:"team0_user" json:"team0User"`
	Team1User  string `db:"team1_user" json:"team1User"`
	Team0Score int    `db:"team0_score" json:"team0Score"`
	Team1Score int    `db:"team1_score" json:"team1Score"`
}

// Store records match starts and goals in PostgreSQL. It implements
// room.History; calls arrive from the room writer goroutine.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

var _ room.History = (*Store)(nil)

func (s *Store) MatchStarted(ctx context.Context, matchID, roomID string, players []room.Player) error {
	if s.db == nil {
		return fmt.Errorf("db is nil")
	}

	var team [2]string
	for _, p := range players {
		if p.TeamID == 0 || p.TeamID == 1 {
			team[p.TeamID] = p.ID
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (id, room_id, team0_user, team1_user, started_at, updated_at) VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		matchID, roomID, team[0], team[1])
	if err != nil {
		return fmt.Errorf("insert match %s: %w", matchID, err)
	}
	return nil
}

// GoalRecorded appends a goal row and mirrors the running score onto the
// match in one transaction.
func (s *Store) GoalRecorded(ctx context.Context, matchID string, scoreTeam int, scores protocol.Scores, scoredBy string) error {
	if s.db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO match_goals (match_id, score_team, team0_score, team1_score, scored_by, created_at) VALUES ($1, $2, $3, $4, $5, NOW())`,
		matchID, scoreTeam, scores[0], scores[1], scoredBy); err != nil {
		return fmt.Errorf("insert goal for match %s: %w", matchID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE matches SET team0_score=$1, team1_score=$2, updated_at=NOW() WHERE id=$3`,
		scores[0], scores[1], matchID); err != nil {
		return fmt.Errorf("update match %s: %w", matchID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit goal for match %s: %w", matchID, err)
	}
	return nil
}

// RecentMatches lists the latest matches played in roomID, newest first.
func (s *Store) RecentMatches(ctx context.Context, roomID string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Match
	err := s.db.SelectContext(ctx, &out,
		`SELECT id, room_id, team0_user, team1_user, team0_score, team1_score FROM matches WHERE room_id=$1 ORDER BY started_at DESC LIMIT $2`,
		roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("select matches for room %s: %w", roomID, err)
	}
	return out, nil
}
