// Package table implements the fixed-record vertex and edge tables.
//
// Each table owns one sub-region: an array of fixed-size records followed by
// an extension heap. Vertex records sit at slot id; edge records sit at slot
// id mod N. Neighbor lists and property key lists that overflow the inline
// arrays spill into the extension heap and are referenced by an arena.Ptr.
//
// Both tables are written during the bulk load only. Record slots are
// disjoint per id and extension ranges come from a lock-free bump allocator,
// so concurrent loaders need no further locking.
package table
