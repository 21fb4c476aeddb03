package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ndauth/ndauth/internal/models"
	"github.com/ndauth/ndauth/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
)

// UserStore is the part of the user repository the services need.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id int64) error
}

type CredentialService struct {
	users  UserStore
	logger *logrus.Logger
}

func NewCredentialService(users UserStore, logger *logrus.Logger) *CredentialService {
	return &CredentialService{
		users:  users,
		logger: logger,
	}
}

// Validate checks a username/password pair against the user store and
// returns the matching active user. Store failures are logged and reported
// as invalid credentials rather than surfaced to the caller.
func (s *CredentialService) Validate(ctx context.Context, username, password string) (*models.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.logger.WithError(err).Error("User lookup failed")
		}
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to record last login")
	}

	return user, nil
}
