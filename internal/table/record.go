package table

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/rgraph/internal/arena"
	"github.com/hupe1980/rgraph/model"
)

const (
	// InlineIn is the number of in-neighbors stored in the vertex record.
	InlineIn = 3
	// InlineOut is the number of out-neighbors stored in the vertex record.
	InlineOut = 3
	// InlineProps is the number of property keys stored in the vertex record.
	InlineProps = 3
	// InlineEdgeProps is the number of property keys stored in the edge record.
	InlineEdgeProps = 1

	// VertexRecordSize is the encoded size of a vertex record.
	VertexRecordSize = 96
	// EdgeRecordSize is the encoded size of an edge record.
	EdgeRecordSize = 24
	// NeighborSize is the encoded size of a neighbor pair.
	NeighborSize = 8
	// PropertyKeySize is the encoded size of a property key.
	PropertyKeySize = 2
)

// Vertex record layout (little-endian):
//
//	 0 id u32          4 label u32
//	 8 in[3] pairs    32 inExt ptr
//	40 out[3] pairs   64 outExt ptr
//	72 props[3] u16   78 pad
//	80 propExt ptr    88 inCount u32   92 outCount u32
const (
	vOffID       = 0
	vOffLabel    = 4
	vOffIn       = 8
	vOffInExt    = 32
	vOffOut      = 40
	vOffOutExt   = 64
	vOffProps    = 72
	vOffPropExt  = 80
	vOffInCount  = 88
	vOffOutCount = 92
)

// Edge record layout (little-endian):
//
//	0 id u64   8 props[1] u16   10 pad   16 propExt ptr
const (
	eOffID      = 0
	eOffProps   = 8
	eOffPropExt = 16
)

// VertexRecord is the decoded form of a vertex slot.
//
// The first min(InCount, InlineIn) in-neighbors are inline; InExt holds the
// rest. The same holds for out-neighbors. Inline property keys are
// non-zero; a zero entry ends the list.
type VertexRecord struct {
	ID       model.VertexID
	Label    model.Label
	In       [InlineIn]model.Neighbor
	InExt    arena.Ptr
	Out      [InlineOut]model.Neighbor
	OutExt   arena.Ptr
	Props    [InlineProps]model.PropertyKey
	PropExt  arena.Ptr
	InCount  uint32
	OutCount uint32
}

// IsEmpty reports whether the slot holds no vertex.
func (r *VertexRecord) IsEmpty() bool {
	return r.ID == 0
}

// InlineIn returns the inline in-neighbors.
func (r *VertexRecord) InlineIn() []model.Neighbor {
	return r.In[:min(int(r.InCount), InlineIn)]
}

// InlineOut returns the inline out-neighbors.
func (r *VertexRecord) InlineOut() []model.Neighbor {
	return r.Out[:min(int(r.OutCount), InlineOut)]
}

// InlineProps returns the inline property keys.
func (r *VertexRecord) InlineProps() []model.PropertyKey {
	n := 0
	for n < InlineProps && r.Props[n] != 0 {
		n++
	}
	return r.Props[:n]
}

// MarshalTo encodes r into b, which must hold VertexRecordSize bytes.
func (r *VertexRecord) MarshalTo(b []byte) {
	_ = b[VertexRecordSize-1]
	clear(b[:VertexRecordSize])

	binary.LittleEndian.PutUint32(b[vOffID:], uint32(r.ID))
	binary.LittleEndian.PutUint32(b[vOffLabel:], uint32(r.Label))
	for i, n := range r.In {
		putNeighbor(b[vOffIn+i*NeighborSize:], n)
	}
	binary.LittleEndian.PutUint64(b[vOffInExt:], r.InExt.Pack())
	for i, n := range r.Out {
		putNeighbor(b[vOffOut+i*NeighborSize:], n)
	}
	binary.LittleEndian.PutUint64(b[vOffOutExt:], r.OutExt.Pack())
	for i, k := range r.Props {
		binary.LittleEndian.PutUint16(b[vOffProps+i*PropertyKeySize:], uint16(k))
	}
	binary.LittleEndian.PutUint64(b[vOffPropExt:], r.PropExt.Pack())
	binary.LittleEndian.PutUint32(b[vOffInCount:], r.InCount)
	binary.LittleEndian.PutUint32(b[vOffOutCount:], r.OutCount)
}

// DecodeVertexRecord decodes a record written by MarshalTo.
func DecodeVertexRecord(b []byte) (VertexRecord, error) {
	var r VertexRecord
	if len(b) < VertexRecordSize {
		return r, fmt.Errorf("%w: vertex record of %d bytes", model.ErrCorrupt, len(b))
	}
	r.ID = model.VertexID(binary.LittleEndian.Uint32(b[vOffID:]))
	r.Label = model.Label(binary.LittleEndian.Uint32(b[vOffLabel:]))
	for i := range r.In {
		r.In[i] = neighborAt(b[vOffIn+i*NeighborSize:])
	}
	r.InExt = arena.UnpackPtr(binary.LittleEndian.Uint64(b[vOffInExt:]))
	for i := range r.Out {
		r.Out[i] = neighborAt(b[vOffOut+i*NeighborSize:])
	}
	r.OutExt = arena.UnpackPtr(binary.LittleEndian.Uint64(b[vOffOutExt:]))
	for i := range r.Props {
		r.Props[i] = model.PropertyKey(binary.LittleEndian.Uint16(b[vOffProps+i*PropertyKeySize:]))
	}
	r.PropExt = arena.UnpackPtr(binary.LittleEndian.Uint64(b[vOffPropExt:]))
	r.InCount = binary.LittleEndian.Uint32(b[vOffInCount:])
	r.OutCount = binary.LittleEndian.Uint32(b[vOffOutCount:])
	return r, nil
}

// EdgeRecord is the decoded form of an edge slot.
type EdgeRecord struct {
	ID      model.EdgeID
	Props   [InlineEdgeProps]model.PropertyKey
	PropExt arena.Ptr
}

// IsEmpty reports whether the slot holds no edge.
func (r *EdgeRecord) IsEmpty() bool {
	return r.ID == 0
}

// InlineProps returns the inline property keys.
func (r *EdgeRecord) InlineProps() []model.PropertyKey {
	n := 0
	for n < InlineEdgeProps && r.Props[n] != 0 {
		n++
	}
	return r.Props[:n]
}

// MarshalTo encodes r into b, which must hold EdgeRecordSize bytes.
func (r *EdgeRecord) MarshalTo(b []byte) {
	_ = b[EdgeRecordSize-1]
	clear(b[:EdgeRecordSize])

	binary.LittleEndian.PutUint64(b[eOffID:], uint64(r.ID))
	for i, k := range r.Props {
		binary.LittleEndian.PutUint16(b[eOffProps+i*PropertyKeySize:], uint16(k))
	}
	binary.LittleEndian.PutUint64(b[eOffPropExt:], r.PropExt.Pack())
}

// DecodeEdgeRecord decodes a record written by MarshalTo.
func DecodeEdgeRecord(b []byte) (EdgeRecord, error) {
	var r EdgeRecord
	if len(b) < EdgeRecordSize {
		return r, fmt.Errorf("%w: edge record of %d bytes", model.ErrCorrupt, len(b))
	}
	r.ID = model.EdgeID(binary.LittleEndian.Uint64(b[eOffID:]))
	for i := range r.Props {
		r.Props[i] = model.PropertyKey(binary.LittleEndian.Uint16(b[eOffProps+i*PropertyKeySize:]))
	}
	r.PropExt = arena.UnpackPtr(binary.LittleEndian.Uint64(b[eOffPropExt:]))
	return r, nil
}

func putNeighbor(b []byte, n model.Neighbor) {
	binary.LittleEndian.PutUint32(b[0:], uint32(n.ID))
	binary.LittleEndian.PutUint32(b[4:], uint32(n.Label))
}

func neighborAt(b []byte) model.Neighbor {
	return model.Neighbor{
		ID:    model.VertexID(binary.LittleEndian.Uint32(b[0:])),
		Label: model.Label(binary.LittleEndian.Uint32(b[4:])),
	}
}

// EncodeNeighbors encodes ns as consecutive 8-byte pairs.
func EncodeNeighbors(ns []model.Neighbor) []byte {
	b := make([]byte, len(ns)*NeighborSize)
	for i, n := range ns {
		putNeighbor(b[i*NeighborSize:], n)
	}
	return b
}

// DecodeNeighbors decodes pairs written by EncodeNeighbors.
func DecodeNeighbors(b []byte) ([]model.Neighbor, error) {
	if len(b)%NeighborSize != 0 {
		return nil, fmt.Errorf("%w: neighbor block of %d bytes", model.ErrCorrupt, len(b))
	}
	ns := make([]model.Neighbor, len(b)/NeighborSize)
	for i := range ns {
		ns[i] = neighborAt(b[i*NeighborSize:])
	}
	return ns, nil
}

// EncodePropertyKeys encodes keys as consecutive little-endian u16 values.
func EncodePropertyKeys(keys []model.PropertyKey) []byte {
	b := make([]byte, len(keys)*PropertyKeySize)
	for i, k := range keys {
		binary.LittleEndian.PutUint16(b[i*PropertyKeySize:], uint16(k))
	}
	return b
}

// DecodePropertyKeys decodes keys written by EncodePropertyKeys.
func DecodePropertyKeys(b []byte) ([]model.PropertyKey, error) {
	if len(b)%PropertyKeySize != 0 {
		return nil, fmt.Errorf("%w: key block of %d bytes", model.ErrCorrupt, len(b))
	}
	keys := make([]model.PropertyKey, len(b)/PropertyKeySize)
	for i := range keys {
		keys[i] = model.PropertyKey(binary.LittleEndian.Uint16(b[i*PropertyKeySize:]))
	}
	return keys, nil
}
