// Package metrics registers the Prometheus collectors for vectorcore's
// ingestion, indexing, and query-planner components. Serving /metrics
// over HTTP is the excluded HTTP surface's job (design §1); this
// package only registers and updates the collectors themselves.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Ingestion metrics.
	SlicesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectorcore_slices_ingested_total",
			Help: "Total number of raw slices written by put_vectors, by bucket and index",
		},
		[]string{"bucket", "index"},
	)

	VectorsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectorcore_vectors_ingested_total",
			Help: "Total number of individual vectors written by put_vectors",
		},
		[]string{"bucket", "index"},
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vectorcore_ingest_duration_seconds",
			Help:    "Time taken to validate and persist one put_vectors slice",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"bucket", "index"},
	)

	// Indexer metrics.
	ShardsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectorcore_shards_published_total",
			Help: "Total number of shards published by a build cycle",
		},
		[]string{"bucket", "index"},
	)

	BuildCycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vectorcore_build_cycle_duration_seconds",
			Help:    "Time taken for one indexer RunOnce cycle",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"bucket", "index"},
	)

	BuildCyclesFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectorcore_build_cycles_failed_total",
			Help: "Total number of indexer build cycles that aborted with an error",
		},
		[]string{"bucket", "index"},
	)

	ReclaimedObjectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectorcore_reclaimed_objects_total",
			Help: "Total number of retention-eligible objects deleted by cleanup, by kind (slice or shard)",
		},
		[]string{"bucket", "index", "kind"},
	)

	// Query planner metrics.
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vectorcore_query_duration_seconds",
			Help:    "Time taken to serve one query across all shards",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"bucket", "index"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectorcore_queries_total",
			Help: "Total number of query requests served, by outcome",
		},
		[]string{"bucket", "index", "outcome"},
	)

	ShardSearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vectorcore_shard_search_duration_seconds",
			Help:    "Time taken to search a single shard within a query fan-out",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"bucket", "index"},
	)

	ShardsQuarantinedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectorcore_shards_quarantined_total",
			Help: "Total number of times a shard breaker tripped open due to repeated corruption",
		},
		[]string{"bucket", "index", "shard_id"},
	)

	ArtifactCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectorcore_artifact_cache_hits_total",
			Help: "Total number of shard artifact cache accesses, by hit or miss",
		},
		[]string{"result"},
	)

	DeletedKeysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectorcore_deleted_keys_total",
			Help: "Total number of keys tombstoned by delete_vectors",
		},
		[]string{"bucket", "index"},
	)
)

func init() {
	prometheus.MustRegister(
		SlicesIngestedTotal,
		VectorsIngestedTotal,
		IngestDuration,
		ShardsPublishedTotal,
		BuildCycleDuration,
		BuildCyclesFailedTotal,
		ReclaimedObjectsTotal,
		QueryDuration,
		QueriesTotal,
		ShardSearchDuration,
		ShardsQuarantinedTotal,
		ArtifactCacheHitsTotal,
		DeletedKeysTotal,
	)
}

// Timer measures an operation's duration against a histogram, mirroring
// the teacher's own start-now/observe-later instrumentation shape.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveSeconds records the elapsed time to histogram.
func (t *Timer) ObserveSeconds(histogram prometheus.Observer) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveVecSeconds records the elapsed time to a labeled histogram vec.
func (t *Timer) ObserveVecSeconds(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
