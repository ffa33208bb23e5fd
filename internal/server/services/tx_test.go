package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/brainy/internal/common"
	"github.com/dmitrijs2005/brainy/internal/dbx"
	"github.com/dmitrijs2005/brainy/internal/logging"
	"github.com/dmitrijs2005/brainy/internal/server/auth"
	"github.com/dmitrijs2005/brainy/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run the real repositories over sqlmock to pin down the
// transaction boundaries of token rotation.

func newSQLService(t *testing.T, clock *testClock) (*AuthService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := testConfig(false)
	codec, err := auth.NewCodec(cfg.SecretKey, clock.Now)
	require.NoError(t, err)
	access := auth.NewAccessTokens(codec, cfg.AccessTokenTTL, clock.Now, logging.NewNop())

	svc := NewAuthService(dbx.NewSQLDatabase(db, nil), repomanager.NewPostgresRepositoryManager(), access, cfg, logging.NewNop(), WithClock(clock.Now))
	return svc, mock
}

var (
	tokenCols = []string{"id", "user_id", "token", "expires_at", "created_at"}
	userCols  = []string{"id", "username", "email", "password_hash", "full_name", "avatar_url", "status", "created_at", "updated_at", "last_login_at"}
)

func TestRefresh_SQL_RotationCommits(t *testing.T) {
	clock := newTestClock()
	svc, mock := newSQLService(t, clock)
	now := clock.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s+RETURNING`).
		WithArgs("old").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("t1", "u1", "old", now.Add(time.Hour), now))
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "alice", "alice@example.com", "h", "Alice", nil, "active", now, now, nil))
	mock.ExpectQuery(`INSERT\s+INTO\s+refresh_tokens`).
		WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg(), now.Add(refreshTTL)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectCommit()

	pair, err := svc.Refresh(context.Background(), "old")
	require.NoError(t, err)
	assert.NotEqual(t, "old", pair.RefreshToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_SQL_ExpiredDeletionIsCommitted(t *testing.T) {
	clock := newTestClock()
	svc, mock := newSQLService(t, clock)
	now := clock.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s+RETURNING`).
		WithArgs("stale").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("t1", "u1", "stale", now.Add(-time.Second), now.Add(-refreshTTL)))
	mock.ExpectCommit()

	_, err := svc.Refresh(context.Background(), "stale")
	assert.ErrorIs(t, err, common.ErrInvalidOrExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_SQL_LosingRaceRollsBack(t *testing.T) {
	clock := newTestClock()
	svc, mock := newSQLService(t, clock)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s+RETURNING`).
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.Refresh(context.Background(), "gone")
	assert.ErrorIs(t, err, common.ErrInvalidOrExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_SQL_FailureAfterTakeRestoresToken(t *testing.T) {
	clock := newTestClock()
	svc, mock := newSQLService(t, clock)
	now := clock.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE\s+FROM\s+refresh_tokens`).
		WithArgs("old").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("t1", "u1", "old", now.Add(time.Hour), now))
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnError(errBoom)
	mock.ExpectRollback()

	_, err := svc.Refresh(context.Background(), "old")
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.NoError(t, mock.ExpectationsWereMet())
}
