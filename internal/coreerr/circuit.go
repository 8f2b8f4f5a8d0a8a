package coreerr

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's lifecycle state.
type BreakerState int

const (
	// BreakerClosed routes queries to the shard normally.
	BreakerClosed BreakerState = iota
	// BreakerOpen skips the shard entirely; results are returned as
	// partial with the shard listed as quarantined.
	BreakerOpen
	// BreakerHalfOpen allows a single probe query through to test whether
	// the shard has recovered (e.g. after a rebuild republished it).
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ShardBreaker is a per-shard circuit breaker used by the query planner to
// quarantine a shard whose artifacts keep failing with KindCorruption:
// checksum mismatches, truncated FAISS blobs, or a keymap whose length
// disagrees with the index's ntotal. A shard trips after maxFailures
// consecutive corruption errors and is retried after cooldown, so a
// shard that gets rebuilt by the indexer recovers without operator
// intervention.
type ShardBreaker struct {
	maxFailures int
	cooldown    time.Duration

	mu          sync.Mutex
	state       BreakerState
	failures    int
	openedAt    time.Time
}

// NewShardBreaker creates a breaker that opens after maxFailures
// consecutive failures and stays open for cooldown before probing again.
func NewShardBreaker(maxFailures int, cooldown time.Duration) *ShardBreaker {
	return &ShardBreaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		state:       BreakerClosed,
	}
}

// DefaultShardBreaker matches the quarantine defaults in the corruption
// handling policy (spec §7): three consecutive corruption failures opens
// the circuit, and it is retried after a minute.
func DefaultShardBreaker() *ShardBreaker {
	return NewShardBreaker(3, time.Minute)
}

// Allow reports whether a query should be routed to this shard right now.
// A half-open breaker allows exactly one caller through per cooldown
// window; subsequent callers are blocked until that probe resolves.
func (b *ShardBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return false
		}
		b.state = BreakerHalfOpen
		return true
	case BreakerHalfOpen:
		return false
	default:
		return true
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *ShardBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = BreakerClosed
}

// RecordFailure registers a failed query against the shard. Only
// KindCorruption failures should be recorded; transient failures are
// handled by object store retry and should not quarantine a shard.
func (b *ShardBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.openedAt = time.Now()
		return
	}

	b.failures++
	if b.failures >= b.maxFailures {
		b.state = BreakerOpen
		b.openedAt = time.Now()
	}
}

// State returns the current state without mutating it.
func (b *ShardBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ShardBreakerRegistry tracks one ShardBreaker per shard_id, created
// lazily on first use. The query planner holds one registry per index.
type ShardBreakerRegistry struct {
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	breakers map[string]*ShardBreaker
}

// NewShardBreakerRegistry creates a registry whose breakers all share the
// given thresholds.
func NewShardBreakerRegistry(maxFailures int, cooldown time.Duration) *ShardBreakerRegistry {
	return &ShardBreakerRegistry{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		breakers:    make(map[string]*ShardBreaker),
	}
}

// For returns the breaker for shardID, creating one if this is the first
// time the shard has been seen.
func (r *ShardBreakerRegistry) For(shardID string) *ShardBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[shardID]
	if !ok {
		b = NewShardBreaker(r.maxFailures, r.cooldown)
		r.breakers[shardID] = b
	}
	return b
}

// Quarantined returns the shard_ids currently in the open state, for
// surfacing in a partial query response.
func (r *ShardBreakerRegistry) Quarantined() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, b := range r.breakers {
		if b.State() == BreakerOpen {
			ids = append(ids, id)
		}
	}
	return ids
}
