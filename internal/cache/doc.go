// Package cache provides byte-capacity LRU caches for immutable blobs.
//
// ShardedLRUBlockCache spreads entries over 64 independently locked LRU
// shards so that concurrent partition fetches rarely contend.
package cache
