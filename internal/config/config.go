// Package config provides the core's only configuration surface: the
// object store endpoint, credentials, and region consumed directly by
// the core (not the CLI), plus the tuning knobs that govern shard size,
// build cadence, retention windows, lease TTL, and the query planner's
// shard cache.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the configuration shared by the indexer, query planner, and
// ingestion pipeline. It mirrors spec.md §6's "Environment inputs
// consumed by the core" plus the tuning knobs named throughout §4.
type Config struct {
	// Endpoint is the object store's S3-compatible endpoint URL.
	Endpoint string
	// AccessKey and SecretKey are static credentials for the object
	// store. Empty means fall back to the default AWS credential chain.
	AccessKey string
	SecretKey string
	// Region is the object store region.
	Region string
	// Bucket is the underlying object store bucket name, distinct from
	// any VectorBucket namespace stored inside it.
	Bucket string
	// Prefix is prepended to every object key this core writes, so
	// multiple cores can share a bucket.
	Prefix string

	// SMax is the maximum number of vectors per shard (§4.3 step 4).
	SMax int
	// BuildMinThreshold is the minimum cumulative un-consumed vector
	// count before a build cycle proceeds (§4.3 step 3).
	BuildMinThreshold int
	// BuildIdleTimeout triggers a build cycle even below
	// BuildMinThreshold once un-consumed vectors have sat this long
	// (§4.3 step 3).
	BuildIdleTimeout time.Duration
	// SliceRetention is how long a consumed slice is kept before
	// deletion (§4.3 step 7).
	SliceRetention time.Duration
	// ShardRetention is the orphan-shard grace period used by the
	// startup scan (§4.3 "Crash recovery").
	ShardRetention time.Duration
	// LeaseTTL is the build lease's time-to-live; holders renew every
	// LeaseTTL/3 and a lease older than 2*LeaseTTL may be forcibly
	// replaced (§5).
	LeaseTTL time.Duration
	// CacheCapacityBytes bounds the query planner's local shard
	// artifact cache.
	CacheCapacityBytes int64
	// DefaultBatchCap bounds the number of vectors accepted in one
	// PutVectors call before the caller must paginate.
	DefaultBatchCap int
}

// Default returns the documented defaults for every tuning knob, with an
// empty object store section that FromEnv or a caller must fill in.
func Default() Config {
	return Config{
		SMax:               10_000,
		BuildMinThreshold:  10_000,
		BuildIdleTimeout:   30 * time.Second,
		SliceRetention:     time.Hour,
		ShardRetention:     24 * time.Hour,
		LeaseTTL:           30 * time.Second,
		CacheCapacityBytes: 4 << 30, // 4 GiB
		DefaultBatchCap:    1000,
	}
}

// FromEnv reads the environment inputs spec.md §6 names
// (VECTORCORE_ENDPOINT, VECTORCORE_ACCESS_KEY, VECTORCORE_SECRET_KEY,
// VECTORCORE_REGION, VECTORCORE_BUCKET, VECTORCORE_PREFIX) over
// Default(), plus optional VECTORCORE_-prefixed overrides for each
// tuning knob. It does not resolve a credential chain or read any
// file; that remains the operator CLI's job.
func FromEnv() Config {
	cfg := Default()

	cfg.Endpoint = os.Getenv("VECTORCORE_ENDPOINT")
	cfg.AccessKey = os.Getenv("VECTORCORE_ACCESS_KEY")
	cfg.SecretKey = os.Getenv("VECTORCORE_SECRET_KEY")
	cfg.Region = os.Getenv("VECTORCORE_REGION")
	cfg.Bucket = os.Getenv("VECTORCORE_BUCKET")
	cfg.Prefix = os.Getenv("VECTORCORE_PREFIX")

	if v, ok := envInt("VECTORCORE_SMAX"); ok {
		cfg.SMax = v
	}
	if v, ok := envInt("VECTORCORE_BUILD_MIN_THRESHOLD"); ok {
		cfg.BuildMinThreshold = v
	}
	if v, ok := envDuration("VECTORCORE_BUILD_IDLE_TIMEOUT"); ok {
		cfg.BuildIdleTimeout = v
	}
	if v, ok := envDuration("VECTORCORE_SLICE_RETENTION"); ok {
		cfg.SliceRetention = v
	}
	if v, ok := envDuration("VECTORCORE_SHARD_RETENTION"); ok {
		cfg.ShardRetention = v
	}
	if v, ok := envDuration("VECTORCORE_LEASE_TTL"); ok {
		cfg.LeaseTTL = v
	}
	if v, ok := envInt64("VECTORCORE_CACHE_CAPACITY_BYTES"); ok {
		cfg.CacheCapacityBytes = v
	}
	if v, ok := envInt("VECTORCORE_DEFAULT_BATCH_CAP"); ok {
		cfg.DefaultBatchCap = v
	}

	return cfg
}

func envInt(key string) (int, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envInt64(key string) (int64, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envDuration(key string) (time.Duration, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
