package repository

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRows = []string{
	"id", "username", "email", "first_name", "last_name", "password_hash",
	"is_active", "is_staff", "is_superuser", "date_joined", "last_login",
}

func newMockRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return NewUserRepository(db, logger), mock
}

func TestGetByUsername(t *testing.T) {
	repo, mock := newMockRepo(t)
	joined := time.Date(2025, 7, 3, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userRows).
			AddRow(int64(1), "alice", "alice@example.com", "Alice", "V", "hash",
				true, false, false, joined, nil))

	user, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "hash", user.PasswordHash)
	assert.True(t, user.IsActive)
	assert.Nil(t, user.LastLogin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByUsername_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(userRows))

	_, err := repo.GetByUsername(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	joined := time.Date(2025, 7, 3, 12, 0, 0, 0, time.UTC)
	lastLogin := joined.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(userRows).
			AddRow(int64(1), "alice", "alice@example.com", "Alice", "V", "hash",
				true, true, false, joined, lastLogin))

	user, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, user.IsStaff)
	require.NotNil(t, user.LastLogin)
	assert.Equal(t, lastLogin, *user.LastLogin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLastLogin(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_login = now() WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateLastLogin(context.Background(), 1))
	require.NoError(t, mock.ExpectationsWereMet())
}
