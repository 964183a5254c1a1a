package admin

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogActionWithoutDatabase(t *testing.T) {
	assert.NoError(t, LogAction(context.Background(), nil, "127.0.0.1", "/api/room/1", "clear_room", nil, true))
}

func TestLogActionInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO admin_audit`)).
		WithArgs("10.0.0.1", "/api/room/:roomId", "clear_room", []byte(`{"room_id":"1234"}`), true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = LogAction(context.Background(), sqlx.NewDb(db, "postgres"), "10.0.0.1", "/api/room/:roomId", "clear_room",
		map[string]interface{}{"room_id": "1234"}, true)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentActions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, ip, route, action, details, success, created_at FROM admin_audit`)).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ip", "route", "action", "details", "success", "created_at"}).
			AddRow(7, "10.0.0.1", "/api/room/:roomId", "clear_room", []byte(`{}`), true, now))

	actions, err := RecentActions(context.Background(), sqlx.NewDb(db, "postgres"), 0, 0)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, int64(7), actions[0].ID)
	assert.Equal(t, "clear_room", actions[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHashKeyRoundTrip(t *testing.T) {
	hashed, err := HashKey("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hashed)

	assert.True(t, VerifyKey(hashed, "s3cret"))
	assert.False(t, VerifyKey(hashed, "wrong"))
	assert.False(t, VerifyKey("not-a-hash", "s3cret"))
}
