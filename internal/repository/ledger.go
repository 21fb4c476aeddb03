package repository

import (
	"context"
	"sync"
	"time"
)

// RevocationLedger records revoked refresh token identifiers. Once a jti is
// in the ledger, a refresh token bearing it must be rejected even if the
// token itself is still cryptographically valid. Entries only need to live
// until the token's own expiry. Revoke is idempotent.
type RevocationLedger interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocationLedger keeps revoked identifiers in process memory. Used
// for tests and single-node development runs.
type MemoryRevocationLedger struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryRevocationLedger() *MemoryRevocationLedger {
	return &MemoryRevocationLedger{
		revoked: make(map[string]time.Time),
	}
}

func (l *MemoryRevocationLedger) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.revoked[jti]; !ok {
		l.revoked[jti] = expiresAt
	}
	return nil
}

func (l *MemoryRevocationLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiresAt, ok := l.revoked[jti]
	if !ok {
		return false, nil
	}

	// An entry past the token's own expiry is dead weight; the token it
	// covered can no longer verify anyway.
	if time.Now().After(expiresAt) {
		delete(l.revoked, jti)
		return false, nil
	}

	return true, nil
}
