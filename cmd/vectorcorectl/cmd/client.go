package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dreamware/vectorcore/internal/ann"
	"github.com/dreamware/vectorcore/internal/config"
	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/indexer"
	"github.com/dreamware/vectorcore/internal/ingest"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
	"github.com/dreamware/vectorcore/internal/query"
)

// resolveConfig layers the persistent --flags over config.FromEnv, so
// an operator can override any connection setting at the shell without
// exporting environment variables first.
func resolveConfig() config.Config {
	cfg := config.FromEnv()
	if storeOpts.endpoint != "" {
		cfg.Endpoint = storeOpts.endpoint
	}
	if storeOpts.accessKey != "" {
		cfg.AccessKey = storeOpts.accessKey
	}
	if storeOpts.secretKey != "" {
		cfg.SecretKey = storeOpts.secretKey
	}
	if storeOpts.region != "" {
		cfg.Region = storeOpts.region
	}
	if storeOpts.bucket != "" {
		cfg.Bucket = storeOpts.bucket
	}
	if storeOpts.prefix != "" {
		cfg.Prefix = storeOpts.prefix
	}
	if storeOpts.cacheCapacityBytes > 0 {
		cfg.CacheCapacityBytes = storeOpts.cacheCapacityBytes
	}
	return cfg
}

// newStore builds the production object store: an S3-compatible client
// wrapped with bounded-retry behavior, so every subcommand gets the
// same transient-failure resilience as the indexer and query planner.
func newStore(ctx context.Context, cfg config.Config) (objectstore.Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket is required: pass --bucket or set VECTORCORE_BUCKET")
	}
	s3, err := objectstore.NewS3Store(ctx, objectstore.S3StoreConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		Prefix:    cfg.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to object store: %w", err)
	}
	return objectstore.NewRetryingStore(s3), nil
}

// newCatalog builds a Catalog over the configured store.
func newCatalog(ctx context.Context, cfg config.Config) (*model.Catalog, error) {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return model.NewCatalog(store), nil
}

// newPipeline builds the ingestion Pipeline over the configured store.
func newPipeline(ctx context.Context, cfg config.Config) (*ingest.Pipeline, error) {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return ingest.NewPipeline(store, model.NewCatalog(store), cfg.DefaultBatchCap), nil
}

// newIndexerCycle builds a build Cycle over the configured store, using
// the go-faiss-backed Builder so shards built by the CLI are
// byte-compatible with shards built by a long-running indexer process.
func newIndexerCycle(ctx context.Context, cfg config.Config) (*indexer.Cycle, error) {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cycleCfg := indexer.Config{
		SMax:              cfg.SMax,
		BuildMinThreshold: cfg.BuildMinThreshold,
		BuildIdleTimeout:  cfg.BuildIdleTimeout,
		LeaseTTL:          cfg.LeaseTTL,
		SliceRetention:    cfg.SliceRetention,
		ShardRetention:    cfg.ShardRetention,
	}
	return indexer.NewCycle(store, model.NewCatalog(store), ann.NewFaissBuilder(), cycleCfg, nil), nil
}

// newPlanner builds a query Planner over the configured store, rooting
// its shard artifact cache at cacheDir (or a fresh temp dir if unset).
func newPlanner(ctx context.Context, cfg config.Config) (*query.Planner, func(), error) {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	dir := storeOpts.cacheDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "vectorcorectl-cache-*")
		if err != nil {
			return nil, nil, fmt.Errorf("creating shard artifact cache dir: %w", err)
		}
	}

	cache, err := query.NewArtifactCache(store, ann.NewFaissBuilder(), dir, cfg.CacheCapacityBytes)
	if err != nil {
		return nil, nil, err
	}

	breakers := coreerr.NewShardBreakerRegistry(3, time.Minute)
	planner := query.NewPlanner(store, model.NewCatalog(store), cache, breakers, cfg.LeaseTTL)
	cleanup := func() { cache.Close() }
	return planner, cleanup, nil
}
