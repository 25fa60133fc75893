// Package cache provides the compute-side vertex cache.
//
// # Vertex Cache
//
// VertexCache keeps the decoded record of every vertex a compute node has
// read: label, inline neighbors, inline property keys and the extension
// pointers. The region is frozen once served, so entries never go stale
// and the cache only grows:
//   - 64-way sharding keyed by maphash
//   - per-shard RWMutex
//   - a roaring bitmap of cached ids for ordered enumeration
package cache
