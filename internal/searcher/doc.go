// Package searcher provides the heaps used to collect and merge scored results.
//
//   - PriorityQueue: a value-based binary heap with a caller supplied order
//   - TopK: a bounded collector that keeps the best K search results
package searcher
