package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ndauth/ndauth/internal/config"
	"github.com/ndauth/ndauth/internal/models"
	"github.com/ndauth/ndauth/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenRevoked   = errors.New("token revoked")
)

type TokenService struct {
	secretKey     []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	clockSkew     time.Duration
	ledger        repository.RevocationLedger
	logger        *logrus.Logger
}

func NewTokenService(cfg *config.JWTConfig, ledger repository.RevocationLedger, logger *logrus.Logger) (*TokenService, error) {
	secretKey := []byte(cfg.SecretKey)
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	return &TokenService{
		secretKey:     secretKey,
		accessExpiry:  cfg.AccessExpiry,
		refreshExpiry: cfg.RefreshExpiry,
		clockSkew:     cfg.ClockSkew,
		ledger:        ledger,
		logger:        logger,
	}, nil
}

type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// IssuePair mints a short-lived access token and a long-lived refresh token
// for the user. The refresh token carries a unique jti used as the
// revocation key.
func (s *TokenService) IssuePair(user *models.User) (*models.TokenPair, error) {
	now := time.Now()

	accessToken, err := s.signToken(TokenTypeAccess, user.Subject(), now, s.accessExpiry)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign access token")
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := s.signToken(TokenTypeRefresh, user.Subject(), now, s.refreshExpiry)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign refresh token")
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessExpiry.Seconds()),
	}, nil
}

// VerifyToken checks signature and expiry and returns the claims. Expiry
// comparisons tolerate the configured clock skew.
func (s *TokenService) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithLeeway(s.clockSkew))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformedToken
	}

	return claims, nil
}

// Refresh verifies a refresh token, rejects revoked ones, and mints a new
// access token for the same subject. The refresh token itself is not
// rotated.
func (s *TokenService) Refresh(ctx context.Context, refreshTokenString string) (string, error) {
	claims, err := s.VerifyToken(refreshTokenString)
	if err != nil {
		return "", err
	}

	if claims.Type != TokenTypeRefresh {
		return "", fmt.Errorf("%w: token is not a refresh token", ErrMalformedToken)
	}

	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to check revocation ledger")
		return "", fmt.Errorf("failed to check revocation ledger: %w", err)
	}
	if revoked {
		return "", ErrTokenRevoked
	}

	accessToken, err := s.signToken(TokenTypeAccess, claims.Subject, time.Now(), s.accessExpiry)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign access token")
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return accessToken, nil
}

// Revoke records the refresh token's jti in the revocation ledger. Revoking
// an already-revoked token is not an error.
func (s *TokenService) Revoke(ctx context.Context, refreshTokenString string) error {
	claims, err := s.VerifyToken(refreshTokenString)
	if err != nil {
		return err
	}

	if claims.Type != TokenTypeRefresh {
		return fmt.Errorf("%w: token is not a refresh token", ErrMalformedToken)
	}

	// The ledger entry must outlive the token's verifiability, which
	// extends past exp by the configured clock skew.
	expiresAt := time.Now().Add(s.refreshExpiry)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	expiresAt = expiresAt.Add(s.clockSkew)

	if err := s.ledger.Revoke(ctx, claims.ID, expiresAt); err != nil {
		s.logger.WithError(err).Error("Failed to record revocation")
		return fmt.Errorf("failed to record revocation: %w", err)
	}

	return nil
}

func (s *TokenService) signToken(tokenType, subject string, now time.Time, expiry time.Duration) (string, error) {
	claims := &Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}
