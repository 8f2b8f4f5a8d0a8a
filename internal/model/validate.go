package model

import (
	"regexp"

	"github.com/dreamware/vectorcore/internal/coreerr"
)

// namePattern matches spec §3's VectorBucket.name and index_name pattern:
// lowercase alphanumeric and hyphens, 2-63 characters total, starting
// with an alphanumeric.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

// ValidateName checks a bucket or index name against the naming
// pattern shared by both.
func ValidateName(kind, name string) error {
	if !namePattern.MatchString(name) {
		return coreerr.Validation("%s name %q must match [a-z0-9][a-z0-9-]{1,62}", kind, name)
	}
	return nil
}

// ValidateDescriptor checks an IndexDescriptor's parameters for internal
// consistency before it is persisted: dimension, nlist bounds, pq_m
// divisibility, and default_nprobe range (spec §3 IndexDescriptor).
func ValidateDescriptor(d IndexDescriptor) error {
	if err := ValidateName("bucket", d.Bucket); err != nil {
		return err
	}
	if err := ValidateName("index", d.IndexName); err != nil {
		return err
	}
	if d.Dimension < 1 {
		return coreerr.Validation("dimension must be >= 1, got %d", d.Dimension)
	}
	if d.DataType != DataTypeFloat32 {
		return coreerr.Validation("unsupported data_type %q", d.DataType)
	}
	if d.DistanceMetric != MetricCosine && d.DistanceMetric != MetricEuclidean {
		return coreerr.Validation("unsupported distance_metric %q", d.DistanceMetric)
	}
	if d.IVFNList < 16 || d.IVFNList > 65536 {
		return coreerr.Validation("ivf_nlist must be in [16, 65536], got %d", d.IVFNList)
	}
	if d.PQM <= 0 || d.Dimension%d.PQM != 0 {
		return coreerr.Validation("pq_m %d must be a positive divisor of dimension %d", d.PQM, d.Dimension)
	}
	if d.PQNBits <= 0 || d.PQNBits > 16 {
		return coreerr.Validation("pq_nbits must be in (0, 16], got %d", d.PQNBits)
	}
	if d.DefaultNProbe < 1 || d.DefaultNProbe > d.IVFNList {
		return coreerr.Validation("default_nprobe must be in [1, ivf_nlist=%d], got %d", d.IVFNList, d.DefaultNProbe)
	}
	return nil
}

// ValidateRecord checks one VectorRecord against its index's dimension
// and the key-presence rule from put_vectors (spec §4.2).
func ValidateRecord(rec VectorRecord, dimension int) error {
	if rec.Key == "" {
		return coreerr.Validation("vector key must be non-empty")
	}
	if len(rec.Embedding) != dimension {
		return coreerr.Validation("embedding length %d does not match index dimension %d", len(rec.Embedding), dimension)
	}
	return nil
}

// ValidateBatch checks an entire put_vectors batch against the
// configured per-call cap (spec §4.2).
func ValidateBatch(records []VectorRecord, dimension, cap int) error {
	if len(records) > cap {
		return coreerr.Validation("batch of %d vectors exceeds per-call cap of %d", len(records), cap)
	}
	for _, rec := range records {
		if err := ValidateRecord(rec, dimension); err != nil {
			return err
		}
	}
	return nil
}
