package kvstore

import (
	"errors"
	"fmt"
)

const (
	// Associativity is the number of slots per bucket. The last slot of a
	// bucket is reserved for the overflow marker.
	Associativity = 8
	// NumLocks is the number of bucket lock stripes.
	NumLocks = 1024
	// MainHeaderRatio is the share, in percent, of buckets addressed by the
	// hash. The rest form the indirect pool.
	MainHeaderRatio = 80
	// DefaultHeaderRatio is the share, in percent, of a store region used
	// for slots. The rest is the entry heap.
	DefaultHeaderRatio = 80
	// SlotSize is the encoded size of a slot: key u64 followed by ptr u64.
	SlotSize = 16
	// BucketSize is the encoded size of a bucket.
	BucketSize = Associativity * SlotSize
)

// ErrInvalidGeometry is returned when a region has no main bucket or no
// entry bytes.
var ErrInvalidGeometry = errors.New("kvstore: invalid geometry")

// Geometry is the split of a store region into slot header and entry heap.
type Geometry struct {
	NumSlots      uint64
	NumBuckets    uint64
	NumIndirect   uint64
	EntryCapacity uint64
}

// EntryOffset returns the offset of the entry heap within the store region.
func (g Geometry) EntryOffset() uint64 {
	return g.NumSlots * SlotSize
}

// TotalBuckets returns main plus indirect buckets.
func (g Geometry) TotalBuckets() uint64 {
	return g.NumBuckets + g.NumIndirect
}

// ComputeGeometry derives the geometry of a store of size bytes of which
// headerRatio percent hold slots.
func ComputeGeometry(size uint64, headerRatio int) (Geometry, error) {
	if headerRatio <= 0 || headerRatio >= 100 {
		return Geometry{}, fmt.Errorf("%w: header ratio %d", ErrInvalidGeometry, headerRatio)
	}
	header := size * uint64(headerRatio) / 100
	numSlots := header / SlotSize
	buckets := numSlots / Associativity
	main := LargestPrime(buckets * MainHeaderRatio / 100)
	if main == 0 {
		return Geometry{}, fmt.Errorf("%w: %d bytes yield no main bucket", ErrInvalidGeometry, size)
	}
	g := Geometry{
		NumSlots:      numSlots,
		NumBuckets:    main,
		NumIndirect:   buckets - main,
		EntryCapacity: size - numSlots*SlotSize,
	}
	if g.EntryCapacity == 0 {
		return Geometry{}, fmt.Errorf("%w: %d bytes leave no entry heap", ErrInvalidGeometry, size)
	}
	return g, nil
}

// LargestPrime returns the largest prime not exceeding n, or 0 if there is none.
func LargestPrime(n uint64) uint64 {
	for ; n >= 2; n-- {
		if isPrime(n) {
			return n
		}
	}
	return 0
}

func isPrime(n uint64) bool {
	switch {
	case n < 2:
		return false
	case n < 4:
		return true
	case n%2 == 0 || n%3 == 0:
		return false
	}
	for i := uint64(5); i*i <= n; i += 6 {
		if n%i == 0 || n%(i+2) == 0 {
			return false
		}
	}
	return true
}
