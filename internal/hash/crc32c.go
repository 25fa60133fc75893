package hash

import (
	"encoding/binary"
	"hash"
	"hash/crc32"
)

// TrailerSize is the size of the checksum appended by AppendCRC32C.
const TrailerSize = 4

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// NewCRC32C returns a streaming CRC32-Castagnoli hash.
func NewCRC32C() hash.Hash32 {
	return crc32.New(castagnoli)
}

// AppendCRC32C appends the little-endian checksum of b to b.
func AppendCRC32C(b []byte) []byte {
	return binary.LittleEndian.AppendUint32(b, CRC32C(b))
}

// SplitCRC32C separates a buffer written by AppendCRC32C into its payload
// and reports whether the trailer matches. It also returns the stored and
// computed checksums for error messages.
func SplitCRC32C(b []byte) (payload []byte, got, want uint32, ok bool) {
	if len(b) < TrailerSize {
		return nil, 0, 0, false
	}
	n := len(b) - TrailerSize
	want = binary.LittleEndian.Uint32(b[n:])
	got = CRC32C(b[:n])
	return b[:n], got, want, got == want
}
