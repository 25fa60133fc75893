package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// NumFields is the number of uint64 fields in a descriptor.
const NumFields = 12

// Size is the encoded size of a descriptor in bytes.
const Size = NumFields * 8

// ErrInvalidDescriptor is returned for a malformed or inconsistent descriptor.
var ErrInvalidDescriptor = errors.New("invalid layout descriptor")

// Descriptor records where every structure lives inside the registered
// region. It is produced once at the end of a bulk load and is the only thing
// a compute node needs to navigate the region.
//
// The wire form is the twelve fields below, in declaration order, as
// little-endian uint64 values.
type Descriptor struct {
	// Vertex table.
	VArrayOff uint64
	VExtOff   uint64
	VNum      uint64

	// Edge table.
	EArrayOff uint64
	EExtOff   uint64
	ENum      uint64

	// Vertex property store.
	VPOff     uint64
	VPSlots   uint64
	VPBuckets uint64

	// Edge property store.
	EPOff     uint64
	EPSlots   uint64
	EPBuckets uint64
}

func (d *Descriptor) fields() [NumFields]*uint64 {
	return [NumFields]*uint64{
		&d.VArrayOff, &d.VExtOff, &d.VNum,
		&d.EArrayOff, &d.EExtOff, &d.ENum,
		&d.VPOff, &d.VPSlots, &d.VPBuckets,
		&d.EPOff, &d.EPSlots, &d.EPBuckets,
	}
}

// MarshalBinary encodes the descriptor in wire order.
func (d Descriptor) MarshalBinary() ([]byte, error) {
	buf := make([]byte, Size)
	for i, f := range d.fields() {
		binary.LittleEndian.PutUint64(buf[i*8:], *f)
	}
	return buf, nil
}

// UnmarshalBinary decodes a descriptor written by MarshalBinary.
func (d *Descriptor) UnmarshalBinary(b []byte) error {
	if len(b) != Size {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidDescriptor, len(b), Size)
	}
	for i, f := range d.fields() {
		*f = binary.LittleEndian.Uint64(b[i*8:])
	}
	return nil
}

// Validate checks the documented region order:
// vertex-property store < edge-property store < vertex table < edge table,
// with each extension heap after its array.
func (d Descriptor) Validate() error {
	if d.VNum == 0 || d.ENum == 0 {
		return fmt.Errorf("%w: empty table", ErrInvalidDescriptor)
	}
	if d.VPSlots == 0 || d.EPSlots == 0 || d.VPBuckets == 0 || d.EPBuckets == 0 {
		return fmt.Errorf("%w: empty property store", ErrInvalidDescriptor)
	}
	if d.VPBuckets > d.VPSlots || d.EPBuckets > d.EPSlots {
		return fmt.Errorf("%w: more buckets than slots", ErrInvalidDescriptor)
	}
	order := []uint64{d.VPOff, d.EPOff, d.VArrayOff, d.VExtOff, d.EArrayOff, d.EExtOff}
	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			return fmt.Errorf("%w: regions out of order", ErrInvalidDescriptor)
		}
	}
	return nil
}

// String returns a multi-line debug dump.
func (d Descriptor) String() string {
	var sb strings.Builder
	sb.WriteString("Descriptor{\n")
	fmt.Fprintf(&sb, "  vertex:  array=%d ext=%d num=%d\n", d.VArrayOff, d.VExtOff, d.VNum)
	fmt.Fprintf(&sb, "  edge:    array=%d ext=%d num=%d\n", d.EArrayOff, d.EExtOff, d.ENum)
	fmt.Fprintf(&sb, "  vprop:   off=%d slots=%d buckets=%d\n", d.VPOff, d.VPSlots, d.VPBuckets)
	fmt.Fprintf(&sb, "  eprop:   off=%d slots=%d buckets=%d\n", d.EPOff, d.EPSlots, d.EPBuckets)
	sb.WriteString("}")
	return sb.String()
}
