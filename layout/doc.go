// Package layout defines the descriptor a compute node needs to navigate a
// memory node's region, and registries that publish it.
//
// # Wire Format
//
// A Descriptor is twelve little-endian uint64 values (96 bytes):
//
//	VArrayOff VExtOff VNum
//	EArrayOff EExtOff ENum
//	VPOff VPSlots VPBuckets
//	EPOff EPSlots EPBuckets
//
// All offsets are relative to the start of the registered region. The
// region holds, in this order, the vertex-property store, the
// edge-property store, the vertex table with its extension heap and the
// edge table with its extension heap.
//
// # Registries
//
// Registry implementations store a descriptor under a name exactly once:
//
//   - BlobRegistry: any blobstore.BlobStore, records carry a CRC32C
//   - dynamodb.Registry: conditional puts, safe for racing publishers
//
// Both also implement NameRegistry and keep a graph's name tables as a
// checksummed JSON record next to its descriptor.
package layout
