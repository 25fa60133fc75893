package table

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/rgraph/internal/arena"
	"github.com/hupe1980/rgraph/model"
)

// NumEdgeLocks is the number of lock stripes guarding edge slots.
const NumEdgeLocks = 1024

// EdgeTable stores edge records at slot id mod N.
//
// Two edges hashing to one slot collide. The later insert wins; the
// collision is logged and counted but not resolved. Insert is safe for
// concurrent use.
type EdgeTable struct {
	*base
	locks      [NumEdgeLocks]sync.Mutex
	collisions atomic.Uint64
}

// NewEdgeTable lays an edge table over region.
// The extension heap takes DefaultEdgeExtRatio percent unless overridden.
func NewEdgeTable(region *arena.Region, opts ...Option) (*EdgeTable, error) {
	b, err := newBase("edge table", region, EdgeRecordSize, DefaultEdgeExtRatio, opts)
	if err != nil {
		return nil, err
	}
	return &EdgeTable{base: b}, nil
}

// SlotOf returns the slot of id in a table of n records.
func SlotOf(id model.EdgeID, n uint64) uint64 {
	return uint64(id) % n
}

// Insert writes rec into its hashed slot and reports whether it replaced a
// different edge.
func (t *EdgeTable) Insert(rec EdgeRecord) (bool, error) {
	if rec.ID.Src() == 0 || rec.ID.Dst() == 0 {
		return false, fmt.Errorf("%w: edge %s", model.ErrInvalidID, rec.ID)
	}

	slot := SlotOf(rec.ID, t.geo.NumRecords)
	b, err := t.slot(slot)
	if err != nil {
		return false, err
	}

	mu := &t.locks[slot%NumEdgeLocks]
	mu.Lock()
	defer mu.Unlock()

	collided := false
	switch prev := model.EdgeID(binary.LittleEndian.Uint64(b[eOffID:])); {
	case prev == rec.ID:
		return false, fmt.Errorf("%w: edge %s", model.ErrDuplicateKey, rec.ID)
	case prev != 0:
		collided = true
		t.collisions.Add(1)
		t.logger.Warn("edge table collision, overwriting",
			"slot", slot,
			"previous", prev.String(),
			"edge", rec.ID.String(),
		)
	default:
		t.records.Add(1)
	}

	rec.MarshalTo(b)
	return collided, nil
}

// Lookup returns the record of id if its slot holds that edge.
func (t *EdgeTable) Lookup(id model.EdgeID) (EdgeRecord, bool, error) {
	b, err := t.slot(SlotOf(id, t.geo.NumRecords))
	if err != nil {
		return EdgeRecord{}, false, err
	}
	rec, err := DecodeEdgeRecord(b)
	if err != nil {
		return EdgeRecord{}, false, err
	}
	if rec.ID != id {
		return EdgeRecord{}, false, nil
	}
	return rec, true, nil
}

// Collisions returns the number of overwritten edges.
func (t *EdgeTable) Collisions() uint64 {
	return t.collisions.Load()
}

// Usage returns fill statistics.
func (t *EdgeTable) Usage() Usage {
	return Usage{
		Records:     t.records.Load(),
		Capacity:    t.geo.NumRecords,
		ExtUsed:     t.bump.Used(),
		ExtCapacity: t.bump.Capacity(),
		Collisions:  t.collisions.Load(),
	}
}

// EdgeState extends State with the collision count.
type EdgeState struct {
	State
	Collisions uint64
}

// State returns the allocator state.
func (t *EdgeTable) State() EdgeState {
	return EdgeState{State: t.state(), Collisions: t.collisions.Load()}
}

// Restore resumes from a state taken over the same region contents.
func (t *EdgeTable) Restore(s EdgeState) {
	t.restore(s.State)
	t.collisions.Store(s.Collisions)
}
