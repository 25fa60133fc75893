package arena

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned when an access falls outside a region.
var ErrOutOfBounds = errors.New("arena: out of bounds")

// Region is a bounded view over a flat byte buffer.
//
// All offsets are relative to the start of the region. Every accessor checks
// bounds and returns ErrOutOfBounds instead of panicking, so higher layers never
// do raw slice arithmetic on the shared buffer.
type Region struct {
	buf  []byte
	base uint64 // offset of buf[0] within the root region
}

// NewRegion wraps buf as a root region.
func NewRegion(buf []byte) *Region {
	return &Region{buf: buf}
}

// Len returns the region length in bytes.
func (r *Region) Len() uint64 {
	return uint64(len(r.buf))
}

// Base returns the absolute offset of this region within its root region.
func (r *Region) Base() uint64 {
	return r.base
}

// Bytes returns the whole region.
func (r *Region) Bytes() []byte {
	return r.buf
}

func (r *Region) check(off, n uint64) error {
	end := off + n
	if end < off || end > uint64(len(r.buf)) {
		return fmt.Errorf("%w: [%d, %d) exceeds %d", ErrOutOfBounds, off, end, len(r.buf))
	}
	return nil
}

// Sub returns the sub-region [off, off+n).
func (r *Region) Sub(off, n uint64) (*Region, error) {
	if err := r.check(off, n); err != nil {
		return nil, err
	}
	return &Region{
		buf:  r.buf[off : off+n : off+n],
		base: r.base + off,
	}, nil
}

// Slice returns the bytes [off, off+n). The slice aliases the region.
func (r *Region) Slice(off, n uint64) ([]byte, error) {
	if err := r.check(off, n); err != nil {
		return nil, err
	}
	return r.buf[off : off+n : off+n], nil
}

// Record interprets the bytes at off as an array of fixed-size records and
// returns the slice for record i.
func (r *Region) Record(off, size, i uint64) ([]byte, error) {
	return r.Slice(off+i*size, size)
}

// Uint64 reads a little-endian uint64 at off.
func (r *Region) Uint64(off uint64) (uint64, error) {
	if err := r.check(off, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.buf[off:]), nil
}

// PutUint64 writes a little-endian uint64 at off.
func (r *Region) PutUint64(off, v uint64) error {
	if err := r.check(off, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(r.buf[off:], v)
	return nil
}

// Zero clears the whole region.
func (r *Region) Zero() {
	clear(r.buf)
}
