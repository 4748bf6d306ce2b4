// Package partition reads, writes and searches cold-tier partitions.
//
// A partition is an immutable blob holding the vectors of one slice of a
// cluster. It is fetched from a blobstore.BlobStore, decoded into a
// ParsedPartition and scored by brute force:
//
//	p, err := partition.FetchPartition(ctx, store, "partitions/c7-0001")
//	if p == nil && err == nil {
//	    // partition does not exist
//	}
//	results, err := partition.SearchPartition(query, p, partition.SearchOptions{Limit: 10})
//
// Fetcher adds request de-duplication, rate limiting, retries and a circuit
// breaker on top of FetchPartition.
//
// # Wire Format (version 1)
//
//	header  : magic "MRLP" | version u8 | compression u8 | reserved u16 | rawLen u32 | crc32c u32
//	payload : count u32 | dim u32 | entry*
//	entry   : id | namespace | type (u16 length + bytes each) | dim x float32 | metadata (u32 length + JSON)
//
// All integers are little-endian. The checksum covers the uncompressed
// payload. The payload may be LZ4 or ZSTD compressed.
package partition
