package arena

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrArenaFull is returned when an allocation does not fit into the remaining capacity.
	ErrArenaFull = errors.New("arena is full")
)

// Bump is a lock-free bump allocator over a fixed capacity.
// Allocated ranges are never reclaimed, so every range handed out is
// disjoint from every other one.
type Bump struct {
	capacity uint64
	align    uint64
	ptr      atomic.Uint64 // Current allocation offset
}

// NewBump creates a bump allocator for capacity bytes.
// align of 0 or 1 disables alignment.
func NewBump(capacity, align uint64) *Bump {
	if align == 0 {
		align = 1
	}
	return &Bump{
		capacity: capacity,
		align:    align,
	}
}

// Alloc allocates size bytes and returns the offset of the first byte.
// It returns ErrArenaFull if there is not enough space left; the allocator
// state is unchanged in that case.
func (b *Bump) Alloc(size uint64) (uint64, error) {
	for {
		cur := b.ptr.Load()
		padding := (b.align - (cur % b.align)) % b.align
		next := cur + padding + size

		if next > b.capacity || next < cur {
			return 0, ErrArenaFull
		}

		if b.ptr.CompareAndSwap(cur, next) {
			return cur + padding, nil
		}
	}
}

// Capacity returns the total number of bytes managed by the allocator.
func (b *Bump) Capacity() uint64 {
	return b.capacity
}

// Used returns the number of bytes handed out so far (including padding).
func (b *Bump) Used() uint64 {
	return b.ptr.Load()
}

// SetUsed restores the allocation offset, e.g. after loading an image.
func (b *Bump) SetUsed(n uint64) {
	if n > b.capacity {
		n = b.capacity
	}
	b.ptr.Store(n)
}
