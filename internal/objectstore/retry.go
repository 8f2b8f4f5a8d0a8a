package objectstore

import (
	"context"

	"github.com/dreamware/vectorcore/internal/coreerr"
)

// RetryingStore wraps a Store so every operation retries transient
// failures under coreerr's default policy (design §4.1: bounded
// retries, exponential backoff with jitter). NotFound, Conflict, and
// Validation errors are never retryable by construction, so wrapping
// is safe to apply uniformly.
type RetryingStore struct {
	inner  Store
	policy coreerr.RetryPolicy
}

// NewRetryingStore wraps inner with coreerr.DefaultRetryPolicy().
func NewRetryingStore(inner Store) *RetryingStore {
	return &RetryingStore{inner: inner, policy: coreerr.DefaultRetryPolicy()}
}

// NewRetryingStoreWithPolicy wraps inner with a caller-supplied policy,
// e.g. a shorter deadline budget for interactive query paths.
func NewRetryingStoreWithPolicy(inner Store, policy coreerr.RetryPolicy) *RetryingStore {
	return &RetryingStore{inner: inner, policy: policy}
}

func (r *RetryingStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	return coreerr.Retry(ctx, r.policy, func() error {
		return r.inner.Put(ctx, key, data, opts)
	})
}

func (r *RetryingStore) Get(ctx context.Context, key string, rng *ByteRange) ([]byte, error) {
	return coreerr.RetryWithResult(ctx, r.policy, func() ([]byte, error) {
		return r.inner.Get(ctx, key, rng)
	})
}

func (r *RetryingStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	return coreerr.RetryWithResult(ctx, r.policy, func() (ObjectMeta, error) {
		return r.inner.Head(ctx, key)
	})
}

func (r *RetryingStore) Delete(ctx context.Context, key string) error {
	return coreerr.Retry(ctx, r.policy, func() error {
		return r.inner.Delete(ctx, key)
	})
}

func (r *RetryingStore) List(ctx context.Context, prefix string, continuationToken string) (ListPage, error) {
	return coreerr.RetryWithResult(ctx, r.policy, func() (ListPage, error) {
		return r.inner.List(ctx, prefix, continuationToken)
	})
}
