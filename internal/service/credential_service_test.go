package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ndauth/ndauth/internal/models"
	"github.com/ndauth/ndauth/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	users      map[string]*models.User
	lookupErr  error
	lastLogins []int64
}

func (s *fakeUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	user, ok := s.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *fakeUserStore) UpdateLastLogin(ctx context.Context, id int64) error {
	s.lastLogins = append(s.lastLogins, id)
	return nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestCredentialService(t *testing.T, store *fakeUserStore) *CredentialService {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewCredentialService(store, logger)
}

func TestValidate_Success(t *testing.T) {
	store := &fakeUserStore{users: map[string]*models.User{
		"alice": {
			ID:           1,
			Username:     "alice",
			Email:        "alice@example.com",
			PasswordHash: hashPassword(t, "correct"),
			IsActive:     true,
		},
	}}
	svc := newTestCredentialService(t, store)

	user, err := svc.Validate(context.Background(), "alice", "correct")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, []int64{1}, store.lastLogins)
}

func TestValidate_MissingFields(t *testing.T) {
	svc := newTestCredentialService(t, &fakeUserStore{})

	_, err := svc.Validate(context.Background(), "", "secret")
	require.ErrorIs(t, err, ErrMissingCredentials)

	_, err = svc.Validate(context.Background(), "alice", "")
	require.ErrorIs(t, err, ErrMissingCredentials)

	_, err = svc.Validate(context.Background(), "   ", "secret")
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestValidate_WrongPasswordAndUnknownUserLookAlike(t *testing.T) {
	store := &fakeUserStore{users: map[string]*models.User{
		"alice": {
			ID:           1,
			Username:     "alice",
			PasswordHash: hashPassword(t, "correct"),
			IsActive:     true,
		},
	}}
	svc := newTestCredentialService(t, store)

	_, wrongPassword := svc.Validate(context.Background(), "alice", "wrong")
	_, unknownUser := svc.Validate(context.Background(), "nobody", "wrong")

	require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	// Same error either way, so responses cannot leak which usernames exist.
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestValidate_DisabledAccount(t *testing.T) {
	store := &fakeUserStore{users: map[string]*models.User{
		"bob": {
			ID:           2,
			Username:     "bob",
			PasswordHash: hashPassword(t, "correct"),
			IsActive:     false,
		},
	}}
	svc := newTestCredentialService(t, store)

	_, err := svc.Validate(context.Background(), "bob", "correct")
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestValidate_StoreFailureMapsToInvalidCredentials(t *testing.T) {
	store := &fakeUserStore{lookupErr: errors.New("connection refused")}
	svc := newTestCredentialService(t, store)

	_, err := svc.Validate(context.Background(), "alice", "correct")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidate_ProfileOmitsPasswordHash(t *testing.T) {
	store := &fakeUserStore{users: map[string]*models.User{
		"alice": {
			ID:           1,
			Username:     "alice",
			PasswordHash: hashPassword(t, "correct"),
			IsActive:     true,
		},
	}}
	svc := newTestCredentialService(t, store)

	user, err := svc.Validate(context.Background(), "alice", "correct")
	require.NoError(t, err)

	profile := user.Profile()
	assert.Equal(t, int64(1), profile.ID)
	assert.Equal(t, "alice", profile.Username)
}
