// Package kvstore implements the cluster-chaining key-value store that holds
// vertex and edge properties.
//
// # Layout
//
// A store region starts with a header of 16-byte slots grouped into buckets
// of Associativity slots, followed by the entry heap:
//
//	[ main buckets | indirect buckets | unused slots ][ entry heap ]
//
// A key hashes to main bucket key mod NumBuckets. The first Associativity-1
// slots of a bucket hold keys; the last slot either is empty or names an
// indirect bucket that continues the chain. Entries are a type tag followed
// by the value bytes.
//
// # Remote reads
//
// Lookup walks a chain with one-sided reads of whole buckets and then reads
// the entry, so a hit in the main bucket costs two round trips.
package kvstore
