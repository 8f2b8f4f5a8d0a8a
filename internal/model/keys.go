package model

import "fmt"

// Key builders for the persisted layout under the object store prefix
// "vectors/" (design §6). Every vectorcore component that addresses
// object storage directly goes through these so the layout is defined
// in exactly one place.

func BucketKey(bucket string) string {
	return fmt.Sprintf("vectors/%s/.bucket.json", bucket)
}

func IndexDescriptorKey(bucket, index string) string {
	return fmt.Sprintf("vectors/%s/%s/.index.json", bucket, index)
}

func CounterKey(bucket, index string) string {
	return fmt.Sprintf("vectors/%s/%s/.counter", bucket, index)
}

func LeaseKey(bucket, index string) string {
	return fmt.Sprintf("vectors/%s/%s/.lease", bucket, index)
}

func ManifestPointerKey(bucket, index string) string {
	return fmt.Sprintf("vectors/%s/%s/manifest.json", bucket, index)
}

func ManifestVersionKey(bucket, index string, version int) string {
	return fmt.Sprintf("vectors/%s/%s/manifest.v%d.json", bucket, index, version)
}

func RawPrefix(bucket, index string) string {
	return fmt.Sprintf("vectors/%s/%s/raw/", bucket, index)
}

func RawSliceKey(bucket, index, sliceID, ext string) string {
	return fmt.Sprintf("vectors/%s/%s/raw/%s.%s", bucket, index, sliceID, ext)
}

func SliceMetaKey(bucket, index, sliceID string) string {
	return fmt.Sprintf("vectors/%s/%s/raw/%s.meta.json", bucket, index, sliceID)
}

func ShardsPrefix(bucket, index string) string {
	return fmt.Sprintf("vectors/%s/%s/shards/", bucket, index)
}

func ShardPrefix(bucket, index, shardID string) string {
	return fmt.Sprintf("vectors/%s/%s/shards/%s/", bucket, index, shardID)
}

func ShardIndexBinKey(bucket, index, shardID string) string {
	return ShardPrefix(bucket, index, shardID) + "index.bin"
}

func ShardConfigKey(bucket, index, shardID string) string {
	return ShardPrefix(bucket, index, shardID) + "index.config.json"
}

func ShardKeymapKey(bucket, index, shardID string) string {
	return ShardPrefix(bucket, index, shardID) + "keymap.bin"
}

func ShardMetadataKey(bucket, index, shardID string) string {
	return ShardPrefix(bucket, index, shardID) + "metadata.jsonl"
}

func ShardReadyKey(bucket, index, shardID string) string {
	return ShardPrefix(bucket, index, shardID) + "ready"
}
