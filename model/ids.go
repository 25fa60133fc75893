package model

import (
	"errors"
	"fmt"
)

// ErrInvalidID is returned when an identifier is zero or does not fit its packed form.
var ErrInvalidID = errors.New("invalid id")

const (
	// VertexIDBits is the number of bits a vertex id may use inside property ids.
	VertexIDBits = 26
	// PropertyKeyBits is the number of bits of a property key inside property ids.
	PropertyKeyBits = 12

	// MaxVertexID is the exclusive upper bound of valid vertex ids.
	MaxVertexID = 1 << VertexIDBits
	// MaxPropertyKey is the exclusive upper bound of valid property keys.
	MaxPropertyKey = 1 << PropertyKeyBits
)

// VertexID identifies a vertex. Zero is reserved for "empty".
type VertexID uint32

// Valid reports whether id is non-zero and packs into property ids.
func (id VertexID) Valid() bool {
	return id != 0 && id < MaxVertexID
}

// Label is a vertex or edge label.
type Label uint32

// PropertyKey identifies a property of a vertex or an edge.
type PropertyKey uint16

// LabelKey is the reserved property key under which labels are stored.
const LabelKey PropertyKey = 0

// Valid reports whether k packs into property ids.
func (k PropertyKey) Valid() bool {
	return k < MaxPropertyKey
}

// EdgeID identifies a directed edge Src -> Dst.
type EdgeID uint64

// NewEdgeID packs an edge id from its endpoints.
func NewEdgeID(src, dst VertexID) EdgeID {
	return EdgeID(uint64(src)<<32 | uint64(dst))
}

// Src returns the vertex the edge leaves.
func (e EdgeID) Src() VertexID { return VertexID(e >> 32) }

// Dst returns the vertex the edge enters.
func (e EdgeID) Dst() VertexID { return VertexID(e) }

// Key returns the edge id as a table key.
func (e EdgeID) Key() uint64 { return uint64(e) }

func (e EdgeID) String() string {
	return fmt.Sprintf("%d->%d", e.Src(), e.Dst())
}

// VertexPropertyID identifies one property of one vertex.
type VertexPropertyID uint64

// NewVertexPropertyID packs vid and key. It fails if either does not fit.
func NewVertexPropertyID(vid VertexID, key PropertyKey) (VertexPropertyID, error) {
	if !vid.Valid() {
		return 0, fmt.Errorf("%w: vertex %d", ErrInvalidID, vid)
	}
	if !key.Valid() {
		return 0, fmt.Errorf("%w: property key %d", ErrInvalidID, key)
	}
	return VertexPropertyID(uint64(vid)<<PropertyKeyBits | uint64(key)), nil
}

// Vertex returns the vertex part.
func (p VertexPropertyID) Vertex() VertexID {
	return VertexID(uint64(p) >> PropertyKeyBits)
}

// Property returns the property key part.
func (p VertexPropertyID) Property() PropertyKey {
	return PropertyKey(uint64(p) & (MaxPropertyKey - 1))
}

// Key returns the id as a store key.
func (p VertexPropertyID) Key() uint64 { return uint64(p) }

// EdgePropertyID identifies one property of one edge.
type EdgePropertyID uint64

// NewEdgePropertyID packs an edge and a key. It fails if any part does not fit.
func NewEdgePropertyID(eid EdgeID, key PropertyKey) (EdgePropertyID, error) {
	src, dst := eid.Src(), eid.Dst()
	if !src.Valid() || !dst.Valid() {
		return 0, fmt.Errorf("%w: edge %s", ErrInvalidID, eid)
	}
	if !key.Valid() {
		return 0, fmt.Errorf("%w: property key %d", ErrInvalidID, key)
	}
	v := uint64(src)<<(VertexIDBits+PropertyKeyBits) |
		uint64(dst)<<PropertyKeyBits |
		uint64(key)
	return EdgePropertyID(v), nil
}

// Edge returns the edge part.
func (p EdgePropertyID) Edge() EdgeID {
	src := VertexID(uint64(p) >> (VertexIDBits + PropertyKeyBits))
	dst := VertexID((uint64(p) >> PropertyKeyBits) & (MaxVertexID - 1))
	return NewEdgeID(src, dst)
}

// Property returns the property key part.
func (p EdgePropertyID) Property() PropertyKey {
	return PropertyKey(uint64(p) & (MaxPropertyKey - 1))
}

// Key returns the id as a store key.
func (p EdgePropertyID) Key() uint64 { return uint64(p) }

// Neighbor is one adjacency entry: the vertex on the other side and the edge label.
type Neighbor struct {
	ID    VertexID
	Label Label
}
