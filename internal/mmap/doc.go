// Package mmap provides memory mappings for the graph region and for local blobs.
//
// # Anonymous mappings
//
// MapAnon creates the read-write region a memory node registers for
// one-sided access. The region is allocated once at startup and never
// resized.
//
//	m, err := mmap.MapAnon(size)
//	if err != nil { ... }
//	defer m.Close()
//
//	region := m.Bytes()
//	_ = m.Advise(mmap.AccessRandom)
//
// # File mappings
//
// Open maps a file read-only. The local blob store uses it for zero-copy
// snapshot reads.
//
// # Thread Safety
//
// A Mapping is safe for concurrent reads. Close is idempotent; callers must
// ensure no goroutine touches Bytes() after Close returns.
package mmap
