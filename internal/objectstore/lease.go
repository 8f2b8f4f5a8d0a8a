package objectstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/vectorcore/internal/coreerr"
)

// LeaseBody is the JSON body of a build lease object at
// indexes/{index}/.lease (design §5).
type LeaseBody struct {
	OwnerID    string    `json:"owner_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	TTL        time.Duration `json:"ttl"`
}

// Lease is a single-writer token guarding manifest mutation and
// slice-counter increments for one index. At most one IX worker may
// hold an index's lease at a time (invariant I5).
type Lease struct {
	store   Store
	key     string
	ttl     time.Duration
	ownerID string

	stopRenew chan struct{}
}

// AcquireLease attempts to take the lease at key. It succeeds either by
// creating the lease object (if absent) or by forcibly replacing one
// whose AcquiredAt is older than 2*ttl (design §5: "a lease older than
// 2*ttl may be forcibly replaced by another worker"). Returns a Conflict
// error if a live lease is held by someone else.
func AcquireLease(ctx context.Context, store Store, key string, ttl time.Duration) (*Lease, error) {
	ownerID := uuid.NewString()
	body := LeaseBody{OwnerID: ownerID, AcquiredAt: time.Now(), TTL: ttl}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, coreerr.Fatal("marshal lease body: %v", err)
	}

	err = store.Put(ctx, key, data, PutOptions{IfNoneMatch: true})
	if err == nil {
		return newHeldLease(store, key, ttl, ownerID), nil
	}
	if coreerr.KindOf(err) != coreerr.KindConflict {
		return nil, err
	}

	existing, getErr := store.Get(ctx, key, nil)
	if getErr != nil {
		return nil, getErr
	}
	var current LeaseBody
	if jsonErr := json.Unmarshal(existing, &current); jsonErr != nil {
		return nil, coreerr.Corruption("lease object %q is not valid JSON: %v", key, jsonErr)
	}

	if time.Since(current.AcquiredAt) < 2*ttl {
		return nil, coreerr.Conflict("lease %q held by %s since %s", key, current.OwnerID, current.AcquiredAt)
	}

	// Stale lease: forcibly replace. A race against another worker doing
	// the same is tolerated (design §5's "small race" acceptance); the
	// indexer is idempotent given the temp-then-ready shard pattern.
	if err := store.Put(ctx, key, data, PutOptions{}); err != nil {
		return nil, err
	}
	return newHeldLease(store, key, ttl, ownerID), nil
}

func newHeldLease(store Store, key string, ttl time.Duration, ownerID string) *Lease {
	return &Lease{store: store, key: key, ttl: ttl, ownerID: ownerID, stopRenew: make(chan struct{})}
}

// OwnerID returns this lease holder's unique id.
func (l *Lease) OwnerID() string {
	return l.ownerID
}

// Renew rewrites the lease body with a fresh AcquiredAt, extending its
// validity. Callers should renew every ttl/3 (design §5).
func (l *Lease) Renew(ctx context.Context) error {
	body := LeaseBody{OwnerID: l.ownerID, AcquiredAt: time.Now(), TTL: l.ttl}
	data, err := json.Marshal(body)
	if err != nil {
		return coreerr.Fatal("marshal lease body: %v", err)
	}
	return l.store.Put(ctx, l.key, data, PutOptions{})
}

// StartAutoRenew launches a background goroutine that renews the lease
// every ttl/3 until ctx is cancelled or Release is called. Renewal
// errors are sent to onError if non-nil.
func (l *Lease) StartAutoRenew(ctx context.Context, onError func(error)) {
	interval := l.ttl / 3
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopRenew:
				return
			case <-ticker.C:
				if err := l.Renew(ctx); err != nil && onError != nil {
					onError(err)
				}
			}
		}
	}()
}

// Release deletes the lease object and stops auto-renewal, making the
// index available to the next build cycle.
func (l *Lease) Release(ctx context.Context) error {
	close(l.stopRenew)
	return l.store.Delete(ctx, l.key)
}
