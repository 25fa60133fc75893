// Package model defines the identifiers and values stored in a graph region.
//
// # Identity Types
//
//   - VertexID: uint32, zero reserved as the empty sentinel
//   - EdgeID: src<<32 | dst, invertible via Src and Dst
//   - VertexPropertyID: vid<<12 | key
//   - EdgePropertyID: src<<38 | dst<<12 | key
//
// Vertex ids must be below MaxVertexID and property keys below MaxPropertyKey
// so every property id fits in 64 bits and is never zero.
//
// # Values
//
// A Value is a type tag plus payload. In a property store it is encoded as
// one tag byte followed by the payload bytes.
//
//	v := model.String("alice")
//	s, err := v.AsString()
//
// # Load Input
//
// Graph, Vertex and Edge describe the data handed to a bulk load. Adjacency is
// derived from the edge list.
//
// # Names
//
// Names optionally maps label and property key strings to their ids, one
// table per kind. A Dictionary indexes the tables both ways; the region
// itself only ever holds ids.
package model
