package arena

import "fmt"

const (
	// PtrSizeBits is the number of bits for the size part of a packed Ptr.
	PtrSizeBits = 24
	// PtrOffBits is the number of bits for the offset part of a packed Ptr.
	PtrOffBits = 64 - PtrSizeBits

	// MaxPtrSize is the largest size a Ptr can describe.
	MaxPtrSize = 1<<PtrSizeBits - 1
	// MaxPtrOff is the largest offset a Ptr can describe.
	MaxPtrOff = 1<<PtrOffBits - 1
)

// Ptr addresses a byte range inside a heap: Size bytes starting at Off.
// The zero Ptr means "nothing allocated".
//
// On the wire a Ptr is one little-endian uint64 with the size in the low
// PtrSizeBits bits and the offset in the remaining high bits.
type Ptr struct {
	Size uint32
	Off  uint64
}

// NewPtr returns a Ptr or an error if size or off do not fit the packed form.
func NewPtr(size, off uint64) (Ptr, error) {
	if size > MaxPtrSize {
		return Ptr{}, fmt.Errorf("arena: ptr size %d exceeds %d", size, MaxPtrSize)
	}
	if off > MaxPtrOff {
		return Ptr{}, fmt.Errorf("arena: ptr offset %d exceeds %d", off, uint64(MaxPtrOff))
	}
	return Ptr{Size: uint32(size), Off: off}, nil
}

// IsZero reports whether p addresses nothing.
func (p Ptr) IsZero() bool {
	return p.Size == 0
}

// Pack encodes p into its wire form.
func (p Ptr) Pack() uint64 {
	return p.Off<<PtrSizeBits | uint64(p.Size)
}

// UnpackPtr decodes the wire form of a Ptr.
func UnpackPtr(v uint64) Ptr {
	return Ptr{
		Size: uint32(v & MaxPtrSize),
		Off:  v >> PtrSizeBits,
	}
}

func (p Ptr) String() string {
	return fmt.Sprintf("ptr(size=%d, off=%d)", p.Size, p.Off)
}
