package objectstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/vectorcore/internal/coreerr"
)

func TestAcquireLease_SucceedsWhenAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	lease, err := AcquireLease(ctx, store, "indexes/i/.lease", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, lease.OwnerID())
}

func TestAcquireLease_ConflictsWhileLive(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	first, err := AcquireLease(ctx, store, "indexes/i/.lease", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, first)

	_, err = AcquireLease(ctx, store, "indexes/i/.lease", time.Minute)
	require.Error(t, err)
	assert.Equal(t, coreerr.KindConflict, coreerr.KindOf(err))
}

func TestAcquireLease_ForciblyReplacesStaleLease(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	ttl := time.Millisecond
	first, err := AcquireLease(ctx, store, "indexes/i/.lease", ttl)
	require.NoError(t, err)

	time.Sleep(3 * ttl) // exceed the 2*ttl staleness window

	second, err := AcquireLease(ctx, store, "indexes/i/.lease", ttl)
	require.NoError(t, err)
	assert.NotEqual(t, first.OwnerID(), second.OwnerID())
}

func TestLease_RenewExtendsAcquiredAt(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	lease, err := AcquireLease(ctx, store, "indexes/i/.lease", time.Minute)
	require.NoError(t, err)

	require.NoError(t, lease.Renew(ctx))

	// A second acquire attempt should still conflict since renewal kept
	// the lease fresh.
	_, err = AcquireLease(ctx, store, "indexes/i/.lease", time.Minute)
	require.Error(t, err)
	assert.Equal(t, coreerr.KindConflict, coreerr.KindOf(err))
}

func TestLease_ReleaseDeletesObject(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	lease, err := AcquireLease(ctx, store, "indexes/i/.lease", time.Minute)
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))

	// After release, a new acquire should succeed immediately.
	_, err = AcquireLease(ctx, store, "indexes/i/.lease", time.Minute)
	require.NoError(t, err)
}
