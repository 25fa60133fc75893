package table

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/rgraph/internal/arena"
	"github.com/hupe1980/rgraph/model"
)

// VertexTable stores vertex records at slot id (direct addressing).
type VertexTable struct {
	*base
}

// NewVertexTable lays a vertex table over region.
// The extension heap takes DefaultVertexExtRatio percent unless overridden.
func NewVertexTable(region *arena.Region, opts ...Option) (*VertexTable, error) {
	b, err := newBase("vertex table", region, VertexRecordSize, DefaultVertexExtRatio, opts)
	if err != nil {
		return nil, err
	}
	return &VertexTable{base: b}, nil
}

// Insert writes rec into slot rec.ID. Slot ids at or beyond N do not fit
// and yield a *CapacityError.
func (t *VertexTable) Insert(rec VertexRecord) error {
	if rec.ID == 0 {
		return fmt.Errorf("%w: vertex 0", model.ErrInvalidID)
	}
	id := uint64(rec.ID)
	if id >= t.geo.NumRecords {
		return &CapacityError{Region: t.name, Requested: id + 1, Capacity: t.geo.NumRecords}
	}

	b, err := t.slot(id)
	if err != nil {
		return err
	}
	if binary.LittleEndian.Uint32(b[vOffID:]) != 0 {
		return fmt.Errorf("%w: vertex %d", model.ErrDuplicateKey, rec.ID)
	}

	rec.MarshalTo(b)
	t.records.Add(1)
	return nil
}

// Find returns the record in slot id. An empty slot decodes to a record
// with ID 0.
func (t *VertexTable) Find(id model.VertexID) (VertexRecord, error) {
	if uint64(id) >= t.geo.NumRecords {
		return VertexRecord{}, fmt.Errorf("%w: vertex %d beyond table of %d", model.ErrInvalidID, id, t.geo.NumRecords)
	}
	b, err := t.slot(uint64(id))
	if err != nil {
		return VertexRecord{}, err
	}
	return DecodeVertexRecord(b)
}

// Usage returns fill statistics.
func (t *VertexTable) Usage() Usage {
	return Usage{
		Records:     t.records.Load(),
		Capacity:    t.geo.NumRecords,
		ExtUsed:     t.bump.Used(),
		ExtCapacity: t.bump.Capacity(),
	}
}

// State returns the allocator state.
func (t *VertexTable) State() State {
	return t.state()
}

// Restore resumes from a state taken over the same region contents.
func (t *VertexTable) Restore(s State) {
	t.restore(s)
}
