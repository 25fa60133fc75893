package kvstore

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/rgraph/internal/arena"
	"github.com/hupe1980/rgraph/model"
)

// SlotState is the logical state of a slot. On the wire a slot only has a
// key and a pointer; the state follows from the key and the slot position.
type SlotState uint8

const (
	// SlotEmpty holds nothing.
	SlotEmpty SlotState = iota
	// SlotEntry holds a key and the pointer to its entry.
	SlotEntry
	// SlotOverflow is the last slot of a bucket and names the next bucket.
	SlotOverflow
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotEntry:
		return "entry"
	case SlotOverflow:
		return "overflow"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Slot is one decoded header slot.
type Slot struct {
	Key uint64
	Ptr arena.Ptr
}

// State returns the state of s at position pos within its bucket.
func (s Slot) State(pos int) SlotState {
	switch {
	case s.Key == 0:
		return SlotEmpty
	case pos == Associativity-1:
		return SlotOverflow
	default:
		return SlotEntry
	}
}

// NextBucket returns the bucket an overflow slot links to.
func (s Slot) NextBucket() uint64 {
	return s.Key
}

func decodeSlot(b []byte) Slot {
	return Slot{
		Key: binary.LittleEndian.Uint64(b[0:]),
		Ptr: arena.UnpackPtr(binary.LittleEndian.Uint64(b[8:])),
	}
}

func putSlot(b []byte, s Slot) {
	binary.LittleEndian.PutUint64(b[0:], s.Key)
	binary.LittleEndian.PutUint64(b[8:], s.Ptr.Pack())
}

// scan outcomes of one bucket.
type scanResult struct {
	slot  Slot
	found bool
	// next is the linked bucket; valid when !found && more.
	next uint64
	more bool
}

// scanBucket looks for key in an encoded bucket.
func scanBucket(b []byte, key uint64) scanResult {
	for i := range Associativity - 1 {
		s := decodeSlot(b[i*SlotSize:])
		if s.Key == key {
			return scanResult{slot: s, found: true}
		}
	}
	last := decodeSlot(b[(Associativity-1)*SlotSize:])
	if last.State(Associativity-1) == SlotOverflow {
		return scanResult{next: last.NextBucket(), more: true}
	}
	return scanResult{}
}

func decodeEntry(b []byte) (model.Value, error) {
	v, err := model.DecodeValue(b)
	if err != nil {
		return model.Value{}, fmt.Errorf("%w: %w", model.ErrCorrupt, err)
	}
	return v, nil
}
