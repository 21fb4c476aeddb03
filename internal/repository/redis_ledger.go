package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type RedisRevocationLedger struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisRevocationLedger(client *redis.Client, logger *logrus.Logger) *RedisRevocationLedger {
	return &RedisRevocationLedger{
		client: client,
		logger: logger,
	}
}

func (l *RedisRevocationLedger) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	key := fmt.Sprintf("revoked_token:%s", jti)

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Token already expired; keep the marker around briefly so a
		// racing refresh with skew tolerance still sees it.
		ttl = time.Minute
	}

	// SETNX makes concurrent revocations of the same jti converge on the
	// first write.
	if err := l.client.SetNX(ctx, key, "1", ttl).Err(); err != nil {
		l.logger.WithError(err).Error("Failed to store revocation marker")
		return fmt.Errorf("failed to store revocation marker: %w", err)
	}

	return nil
}

func (l *RedisRevocationLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	key := fmt.Sprintf("revoked_token:%s", jti)

	exists, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation marker: %w", err)
	}

	return exists > 0, nil
}
