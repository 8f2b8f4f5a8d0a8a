package objectstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/vectorcore/internal/coreerr"
)

func TestRetryingStore_RetriesTransientPutFailures(t *testing.T) {
	mem := NewMemStore()
	mem.FailNextPuts = 2

	rs := NewRetryingStoreWithPolicy(mem, coreerr.RetryPolicy{
		MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Jitter: false,
	})

	err := rs.Put(context.Background(), "k", []byte("v"), PutOptions{})
	require.NoError(t, err)

	data, err := mem.Get(context.Background(), "k", nil)
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))
}

func TestRetryingStore_DoesNotRetryConflict(t *testing.T) {
	mem := NewMemStore()
	require.NoError(t, mem.Put(context.Background(), "k", []byte("v1"), PutOptions{IfNoneMatch: true}))

	rs := NewRetryingStore(mem)
	err := rs.Put(context.Background(), "k", []byte("v2"), PutOptions{IfNoneMatch: true})
	require.Error(t, err)
	assert.Equal(t, coreerr.KindConflict, coreerr.KindOf(err))
}

func TestRetryingStore_GetPassesThroughOnSuccess(t *testing.T) {
	mem := NewMemStore()
	require.NoError(t, mem.Put(context.Background(), "k", []byte("hello"), PutOptions{}))

	rs := NewRetryingStore(mem)
	data, err := rs.Get(context.Background(), "k", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
