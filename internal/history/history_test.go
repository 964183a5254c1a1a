package history

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/flickfooty/backend/internal/protocol"
	"github.com/flickfooty/backend/internal/room"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func TestMatchStartedInsertsTeams(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO matches`)).
		WithArgs("m-1", "1234", "alice", "bob").
		WillReturnResult(sqlmock.NewResult(0, 1))

	players := []room.Player{{ID: "bob", TeamID: 1}, {ID: "alice", TeamID: 0}}
	require.NoError(t, s.MatchStarted(context.Background(), "m-1", "1234", players))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGoalRecordedUpdatesScoreInTx(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO match_goals`)).
		WithArgs("m-1", 1, 0, 1, "bob").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE matches SET team0_score=$1, team1_score=$2`)).
		WithArgs(0, 1, "m-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.GoalRecorded(context.Background(), "m-1", 1, protocol.Scores{0: 0, 1: 1}, "bob")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGoalRecordedRollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO match_goals`)).
		WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := s.GoalRecorded(context.Background(), "missing", 0, protocol.Scores{0: 1, 1: 0}, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fk violation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentMatches(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "room_id", "team0_user", "team1_user", "team0_score", "team1_score"}).
		AddRow("m-2", "1234", "alice", "bob", 2, 1).
		AddRow("m-1", "1234", "alice", "bob", 0, 3)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, room_id, team0_user`)).
		WithArgs("1234", 10).
		WillReturnRows(rows)

	matches, err := s.RecentMatches(context.Background(), "1234", 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "m-2", matches[0].ID)
	assert.Equal(t, 2, matches[0].Team0Score)
	assert.Equal(t, 3, matches[1].Team1Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}
