// Package snapshot encodes a memory node region as a self-checking image.
//
// An image is a header (magic, version, compression, region descriptor,
// opaque metadata, region length, block size) followed by the region in
// blocks of BlockSize bytes. Each block carries an [u32 raw][u32 compressed]
// header; a compressed length of 0 means the block is stored raw. A CRC32C
// over everything before it closes the image.
package snapshot
