package query

import (
	"container/heap"
	"sort"

	"github.com/dreamware/vectorcore/internal/model"
)

// candidate is one per-shard search hit after keymap resolution, before
// cross-shard merge and dedupe (design §4.4 steps 4-5).
type candidate struct {
	Key            string
	Score          float32
	ShardID        string
	Ordinal        int64
	MetadataOffset int64
	SourceSliceID  string
}

// better reports whether a ranks ahead of b under metric, with the
// (shard_id, internal_ordinal) tiebreak design §4.4 names.
func better(metric model.DistanceMetric, a, b candidate) bool {
	if a.Score != b.Score {
		if metric == model.MetricCosine {
			return a.Score > b.Score // similarity: higher is better
		}
		return a.Score < b.Score // L2 distance: lower is better
	}
	if a.ShardID != b.ShardID {
		return a.ShardID < b.ShardID
	}
	return a.Ordinal < b.Ordinal
}

// worstHeap is a bounded max-heap (by "worst first") used to keep only
// the topK best candidates seen so far while streaming in per-shard
// results, matching design §4.4's "single heap of size topK_global".
type worstHeap struct {
	metric model.DistanceMetric
	items  []candidate
}

func (h *worstHeap) Len() int { return len(h.items) }
func (h *worstHeap) Less(i, j int) bool {
	// The heap root is the current worst surviving candidate, so Less
	// here is inverted relative to better().
	return better(h.metric, h.items[j], h.items[i])
}
func (h *worstHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *worstHeap) Push(x any)         { h.items = append(h.items, x.(candidate)) }
func (h *worstHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// mergeTopK merges per-shard candidate lists into the topK best,
// deduplicated by key (design §4.4 steps 5): when the same key appears
// more than once (re-submitted under a later slice), the instance from
// the greatest slice_id wins; earlier duplicates are discarded before
// ranking so they never occupy a heap slot a genuine distinct key
// could have used.
func mergeTopK(metric model.DistanceMetric, topK int, perShard [][]candidate) []candidate {
	best := make(map[string]candidate)
	for _, shardResults := range perShard {
		for _, c := range shardResults {
			existing, ok := best[c.Key]
			if !ok || c.SourceSliceID > existing.SourceSliceID {
				best[c.Key] = c
			}
		}
	}

	h := &worstHeap{metric: metric}
	heap.Init(h)
	for _, c := range best {
		if h.Len() < topK {
			heap.Push(h, c)
			continue
		}
		if better(metric, c, h.items[0]) {
			heap.Pop(h)
			heap.Push(h, c)
		}
	}

	out := make([]candidate, h.Len())
	copy(out, h.items)
	sort.Slice(out, func(i, j int) bool { return better(metric, out[i], out[j]) })
	return out
}
