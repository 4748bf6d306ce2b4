// Package hash provides the checksum used to verify partition payloads.
//
// Partitions are checksummed with CRC32-Castagnoli (CRC32C), which Go's
// hash/crc32 accelerates in hardware on x86 (SSE4.2) and ARM64.
//
//	checksum := hash.CRC32C(payload)
package hash
