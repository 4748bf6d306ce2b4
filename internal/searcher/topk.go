package searcher

import (
	"slices"

	"github.com/hupe1980/mrlsearch/model"
)

// TopK keeps the best k results seen so far, in the canonical result order
// (descending score, ascending id). A k of zero or less keeps everything.
type TopK struct {
	k    int
	heap *PriorityQueue[model.SearchResult]
	all  []model.SearchResult
}

// NewTopK creates a collector for the best k results.
func NewTopK(k int) *TopK {
	t := &TopK{k: k}
	if k > 0 {
		// Worst result on top so it can be evicted in O(log k).
		t.heap = NewPriorityQueue(func(a, b model.SearchResult) bool {
			return model.CompareResults(a, b) > 0
		}, k)
	}
	return t
}

// Add offers r to the collector.
func (t *TopK) Add(r model.SearchResult) {
	if t.heap == nil {
		t.all = append(t.all, r)
		return
	}
	t.heap.PushBounded(r, t.k)
}

// Threshold returns the score a new result has to beat once the collector is full.
func (t *TopK) Threshold() (float32, bool) {
	if t.heap == nil || t.heap.Len() < t.k {
		return 0, false
	}
	top, _ := t.heap.Top()
	return top.Score, true
}

// Len returns the number of results held.
func (t *TopK) Len() int {
	if t.heap == nil {
		return len(t.all)
	}
	return t.heap.Len()
}

// Results returns the collected results sorted best first.
func (t *TopK) Results() []model.SearchResult {
	var out []model.SearchResult
	if t.heap == nil {
		out = slices.Clone(t.all)
	} else {
		out = slices.Clone(t.heap.Items())
	}
	slices.SortFunc(out, model.CompareResults)
	return out
}
