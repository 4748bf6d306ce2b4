// Package merge combines ranked result lists.
package merge

import (
	"slices"

	"github.com/hupe1980/mrlsearch/internal/searcher"
	"github.com/hupe1980/mrlsearch/model"
)

type cursor struct {
	list int
	pos  int
	res  model.SearchResult
}

// MergeSearchResults merges ranked lists into one list in canonical order.
//
// An id present in several lists is emitted once with its highest score.
// Lists are expected sorted best first; unsorted lists are sorted on a copy.
// A limit of zero or less keeps every result. Runs in O(N log k) for N
// results across k lists.
func MergeSearchResults(lists [][]model.SearchResult, limit int) []model.SearchResult {
	sorted := make([][]model.SearchResult, 0, len(lists))
	total := 0
	for _, l := range lists {
		if len(l) == 0 {
			continue
		}
		if !slices.IsSortedFunc(l, model.CompareResults) {
			l = slices.Clone(l)
			slices.SortFunc(l, model.CompareResults)
		}
		sorted = append(sorted, l)
		total += len(l)
	}
	if total == 0 {
		return nil
	}

	pq := searcher.NewPriorityQueue(func(a, b cursor) bool {
		return model.CompareResults(a.res, b.res) < 0
	}, len(sorted))
	for i, l := range sorted {
		pq.Push(cursor{list: i, res: l[0]})
	}

	capacity := total
	if limit > 0 {
		capacity = min(limit, total)
	}
	out := make([]model.SearchResult, 0, capacity)
	seen := make(map[string]struct{}, capacity)

	for pq.Len() > 0 {
		c, _ := pq.Pop()
		// Results leave the heap best first, so the first occurrence of an
		// id carries its maximum score.
		if _, dup := seen[c.res.ID]; !dup {
			seen[c.res.ID] = struct{}{}
			out = append(out, c.res)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		if next := c.pos + 1; next < len(sorted[c.list]) {
			pq.Push(cursor{list: c.list, pos: next, res: sorted[c.list][next]})
		}
	}
	return out
}

// CombineTieredResults joins hot and cold results.
//
// Cold entries are authoritative: when an id appears in both tiers the cold
// score and metadata are kept and the result is tagged TierMerged. Repeated
// ids within one tier keep their best score. The output is in canonical order and truncated to limit (zero or less keeps
// everything).
func CombineTieredResults(hot, cold []model.SearchResult, limit int) []model.SearchResult {
	byID := make(map[string]int, len(hot)+len(cold))
	out := make([]model.SearchResult, 0, len(hot)+len(cold))

	for _, r := range cold {
		if i, ok := byID[r.ID]; ok {
			if r.Score > out[i].Score {
				out[i].Score = r.Score
				out[i].Metadata = r.Metadata
			}
			continue
		}
		r.Tier = model.TierCold
		byID[r.ID] = len(out)
		out = append(out, r)
	}
	for _, r := range hot {
		if i, ok := byID[r.ID]; ok {
			if out[i].Tier == model.TierHot {
				if r.Score > out[i].Score {
					out[i].Score = r.Score
					out[i].Metadata = r.Metadata
				}
				continue
			}
			out[i].Tier = model.TierMerged
			continue
		}
		r.Tier = model.TierHot
		byID[r.ID] = len(out)
		out = append(out, r)
	}

	slices.SortFunc(out, model.CompareResults)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
