package model

import (
	"bytes"
	"encoding/gob"

	"github.com/dreamware/vectorcore/internal/coreerr"
)

// keymapRecord is the gob-encoded shape of keymap.bin: a dense array
// indexed by internal ordinal 0..N-1 within a shard (design §3 Shard).
type keymapRecord struct {
	Entries []ShardEntry
}

// EncodeKeymap serializes a shard's dense ordinal -> entry array. Both
// the indexer (writer) and the query planner (reader) depend on this
// one encoding, defined here rather than in either package.
func EncodeKeymap(entries []ShardEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(keymapRecord{Entries: entries}); err != nil {
		return nil, coreerr.Fatal("encode keymap: %v", err)
	}
	return buf.Bytes(), nil
}

// DecodeKeymap parses a keymap.bin object back into its dense ordinal ->
// entry array.
func DecodeKeymap(data []byte) ([]ShardEntry, error) {
	var rec keymapRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, coreerr.Corruption("decoding keymap: %v", err)
	}
	return rec.Entries, nil
}
