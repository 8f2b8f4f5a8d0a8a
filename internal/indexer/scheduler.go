package indexer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler drives one Cycle per (bucket, index) on a timer, with an
// extra hint channel so a successful put_vectors can trigger an
// earlier run without waiting for the next tick (design §4.3: "triggered
// on a timer and/or after each successful IP write (hint, not required
// for correctness)").
type Scheduler struct {
	cycle    *Cycle
	interval time.Duration
	log      *slog.Logger

	mu    sync.Mutex
	hints map[string]chan struct{}
	wg    sync.WaitGroup
}

// NewScheduler builds a Scheduler that runs a build cycle for each
// registered (bucket, index) at least once per interval.
func NewScheduler(cycle *Cycle, interval time.Duration, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{cycle: cycle, interval: interval, log: log, hints: make(map[string]chan struct{})}
}

// Watch starts a background goroutine running build cycles for
// (bucket, index) on this scheduler's interval, until ctx is cancelled.
// Safe to call once per (bucket, index); a second
// call for the same pair is a no-op.
func (s *Scheduler) Watch(ctx context.Context, bucket, index string) {
	key := bucket + "/" + index

	s.mu.Lock()
	if _, exists := s.hints[key]; exists {
		s.mu.Unlock()
		return
	}
	hint := make(chan struct{}, 1)
	s.hints[key] = hint
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx, bucket, index)
			case <-hint:
				s.runOnce(ctx, bucket, index)
				ticker.Reset(s.interval)
			}
		}
	}()
}

// Hint signals that (bucket, index) has new un-consumed vectors worth
// considering before the next scheduled tick. Non-blocking: a pending
// hint is coalesced if one is already queued.
func (s *Scheduler) Hint(bucket, index string) {
	key := bucket + "/" + index
	s.mu.Lock()
	hint, ok := s.hints[key]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case hint <- struct{}{}:
	default:
	}
}

// Wait blocks until every Watch goroutine has returned, which happens
// once the context each was started with is cancelled. Callers own a
// single shared context across all Watch calls if they want one Stop
// point for every (bucket, index) pair.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runOnce(ctx context.Context, bucket, index string) {
	result, err := s.cycle.Run(ctx, bucket, index)
	if err != nil {
		s.log.Warn("build cycle failed", slog.String("bucket", bucket), slog.String("index", index), slog.Any("error", err))
		return
	}
	if result.Skipped {
		s.log.Debug("build cycle skipped", slog.String("bucket", bucket), slog.String("index", index),
			slog.String("reason", result.Reason),
			slog.Int("slices_reclaimed", result.SlicesReclaimed), slog.Int("shards_reclaimed", result.ShardsReclaimed))
		return
	}
	s.log.Info("build cycle complete",
		slog.String("bucket", bucket), slog.String("index", index),
		slog.Int("shards_built", result.ShardsBuilt), slog.Int("shards_failed", result.ShardsFailed),
		slog.Int("manifest_version", result.ManifestAfter),
		slog.Int("slices_reclaimed", result.SlicesReclaimed), slog.Int("shards_reclaimed", result.ShardsReclaimed))
}
