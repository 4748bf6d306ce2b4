// Package mmap maps local blob files read-only into memory.
//
// The local blob store uses it to serve ReadAt calls without a syscall per
// read. A Mapping is safe for concurrent reads; Close is idempotent and
// must not race with reads that are still in flight.
package mmap
