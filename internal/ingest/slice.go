package ingest

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/model"
)

// sliceRecord is the on-disk JSONL shape of one vector within a slice
// (design §3 Slice: "records {key, embedding[dimension], metadata}").
type sliceRecord struct {
	Key       string         `json:"key"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewSliceID builds a lexicographically sortable slice_id: a 20-digit
// zero-padded counter value plus an 8-hex-character random suffix
// (design §3 Slice, §4.2).
func NewSliceID(counter int64) (string, error) {
	suffix, err := rand8()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%020d-%s", counter, suffix), nil
}

func rand8() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", coreerr.Fatal("generating slice id suffix: %v", err)
	}
	return hex.EncodeToString(buf), nil
}

// EncodeSliceJSONL serializes records as newline-delimited JSON, the
// default slice format (design §3: Format {JSONL, PARQUET}; PARQUET is
// accepted by the type but not produced by this pipeline).
func EncodeSliceJSONL(records []model.VectorRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		rec := sliceRecord{Key: r.Key, Embedding: r.Embedding, Metadata: r.Metadata}
		if err := enc.Encode(rec); err != nil {
			return nil, coreerr.Fatal("encoding slice record for key %q: %v", r.Key, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeSliceJSONL parses a JSONL slice object back into records,
// streaming line by line so the indexer never holds an entire large
// slice's JSON text doubly in memory.
func DecodeSliceJSONL(data []byte) ([]model.VectorRecord, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []model.VectorRecord
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec sliceRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, coreerr.Corruption("decoding slice record: %v", err)
		}
		records = append(records, model.VectorRecord{Key: rec.Key, Embedding: rec.Embedding, Metadata: rec.Metadata})
	}
	if err := scanner.Err(); err != nil {
		return nil, coreerr.Corruption("scanning slice: %v", err)
	}
	return records, nil
}
