package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_RevokeAndCheck(t *testing.T) {
	ledger := NewMemoryRevocationLedger()
	ctx := context.Background()

	revoked, err := ledger.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, ledger.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err = ledger.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Unrelated identifiers are unaffected.
	revoked, err = ledger.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryLedger_RevokeIdempotent(t *testing.T) {
	ledger := NewMemoryRevocationLedger()
	ctx := context.Background()

	require.NoError(t, ledger.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	require.NoError(t, ledger.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err := ledger.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMemoryLedger_ExpiredEntriesPruned(t *testing.T) {
	ledger := NewMemoryRevocationLedger()
	ctx := context.Background()

	require.NoError(t, ledger.Revoke(ctx, "jti-1", time.Now().Add(-time.Second)))

	revoked, err := ledger.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryLedger_ConcurrentRevoke(t *testing.T) {
	ledger := NewMemoryRevocationLedger()
	ctx := context.Background()
	expiresAt := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ledger.Revoke(ctx, "jti-1", expiresAt)
			_, _ = ledger.IsRevoked(ctx, "jti-1")
		}()
	}
	wg.Wait()

	revoked, err := ledger.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}
