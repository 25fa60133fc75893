// Package hash provides the CRC32-Castagnoli checksums used for snapshot
// images, registry records and S3 uploads.
//
// One-shot:
//
//	sum := hash.CRC32C(data)
//
// Streaming:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk)
//	sum := h.Sum32()
//
// Records that carry their own checksum use AppendCRC32C and SplitCRC32C.
package hash
