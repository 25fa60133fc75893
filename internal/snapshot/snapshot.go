package snapshot

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/rgraph/internal/hash"
	"github.com/hupe1980/rgraph/layout"
	"github.com/hupe1980/rgraph/model"
)

const (
	// Version is the image format version.
	Version uint16 = 1

	// BlockSize is the uncompressed size of a full block.
	BlockSize = 1 << 20

	// MaxMetaSize bounds the metadata section.
	MaxMetaSize = 1 << 20

	maxBlockSize    = 64 << 20
	blockHeaderSize = 8
	trailerSize     = 4
)

var magic = [4]byte{'R', 'G', 'S', 'N'}

var (
	// ErrInvalidImage is returned for a malformed or truncated image.
	ErrInvalidImage = fmt.Errorf("snapshot: invalid image: %w", model.ErrCorrupt)
	// ErrChecksumMismatch is returned when the trailing CRC32C does not match.
	ErrChecksumMismatch = fmt.Errorf("snapshot: checksum mismatch: %w", model.ErrCorrupt)
)

// Header describes an image. Meta is opaque to this package; the data
// store keeps its allocator counters there.
type Header struct {
	Compression Compression
	Descriptor  layout.Descriptor
	Meta        []byte
	RegionLen   uint64
	BlockSize   uint32
}

func (h Header) marshal() ([]byte, error) {
	desc, err := h.Descriptor.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 4+2+2+layout.Size+4+len(h.Meta)+8+4)
	buf = append(buf, magic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, Version)
	buf = append(buf, byte(h.Compression), 0)
	buf = append(buf, desc...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h.Meta)))
	buf = append(buf, h.Meta...)
	buf = binary.LittleEndian.AppendUint64(buf, h.RegionLen)
	buf = binary.LittleEndian.AppendUint32(buf, h.BlockSize)
	return buf, nil
}

// Write encodes region as an image to w and returns the bytes written.
// RegionLen and BlockSize of h are filled in.
func Write(ctx context.Context, w io.Writer, h Header, region []byte) (int64, error) {
	if len(h.Meta) > MaxMetaSize {
		return 0, fmt.Errorf("snapshot: meta of %d bytes exceeds %d", len(h.Meta), MaxMetaSize)
	}
	if h.Compression > CompressionZSTD {
		return 0, fmt.Errorf("snapshot: unknown compression %d", uint8(h.Compression))
	}
	h.RegionLen = uint64(len(region))
	h.BlockSize = BlockSize

	crc := hash.NewCRC32C()
	cw := &countingWriter{w: io.MultiWriter(w, crc)}

	hdr, err := h.marshal()
	if err != nil {
		return 0, err
	}
	if _, err := cw.Write(hdr); err != nil {
		return cw.n, err
	}

	var bh [blockHeaderSize]byte
	for off := 0; off < len(region); off += BlockSize {
		if err := ctx.Err(); err != nil {
			return cw.n, err
		}
		block := region[off:min(off+BlockSize, len(region))]

		comp, err := compress(block, h.Compression)
		if err != nil {
			return cw.n, fmt.Errorf("snapshot: compress block at %d: %w", off, err)
		}
		binary.LittleEndian.PutUint32(bh[0:], uint32(len(block)))
		binary.LittleEndian.PutUint32(bh[4:], uint32(len(comp)))
		if _, err := cw.Write(bh[:]); err != nil {
			return cw.n, err
		}
		payload := block
		if comp != nil {
			payload = comp
		}
		if _, err := cw.Write(payload); err != nil {
			return cw.n, err
		}
	}

	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint32(trailer[:], crc.Sum32())
	n, err := w.Write(trailer[:])
	return cw.n + int64(n), err
}

// DestFunc returns the buffer an image body is decoded into. It is called
// once the header is read and must return exactly h.RegionLen bytes.
type DestFunc func(h Header) ([]byte, error)

// Read decodes an image from r into the buffer dest supplies and verifies
// the checksum.
func Read(ctx context.Context, r io.Reader, dest DestFunc) (Header, error) {
	br := bufio.NewReaderSize(r, 256<<10)
	crc := hash.NewCRC32C()
	tr := io.TeeReader(br, crc)

	h, err := readHeader(tr)
	if err != nil {
		return Header{}, err
	}

	dst, err := dest(h)
	if err != nil {
		return h, err
	}
	if uint64(len(dst)) != h.RegionLen {
		return h, fmt.Errorf("snapshot: destination holds %d bytes, image has %d", len(dst), h.RegionLen)
	}

	var (
		bh  [blockHeaderSize]byte
		buf []byte
	)
	for off := uint64(0); off < h.RegionLen; {
		if err := ctx.Err(); err != nil {
			return h, err
		}
		if _, err := io.ReadFull(tr, bh[:]); err != nil {
			return h, truncated(err)
		}
		raw := uint64(binary.LittleEndian.Uint32(bh[0:]))
		comp := uint64(binary.LittleEndian.Uint32(bh[4:]))
		if raw == 0 || raw > uint64(h.BlockSize) || raw > h.RegionLen-off || comp >= raw {
			return h, fmt.Errorf("%w: block at %d: raw %d, compressed %d", ErrInvalidImage, off, raw, comp)
		}

		out := dst[off : off+raw]
		if comp == 0 {
			if _, err := io.ReadFull(tr, out); err != nil {
				return h, truncated(err)
			}
		} else {
			if uint64(cap(buf)) < comp {
				buf = make([]byte, comp)
			}
			buf = buf[:comp]
			if _, err := io.ReadFull(tr, buf); err != nil {
				return h, truncated(err)
			}
			if err := decompress(out, buf, h.Compression); err != nil {
				return h, fmt.Errorf("%w: block at %d: %w", ErrInvalidImage, off, err)
			}
		}
		off += raw
	}

	var trailer [trailerSize]byte
	if _, err := io.ReadFull(br, trailer[:]); err != nil {
		return h, truncated(err)
	}
	if got, want := crc.Sum32(), binary.LittleEndian.Uint32(trailer[:]); got != want {
		return h, fmt.Errorf("%w: computed %08x, stored %08x", ErrChecksumMismatch, got, want)
	}
	return h, nil
}

// ReadHeader decodes only the header of an image.
func ReadHeader(r io.Reader) (Header, error) {
	return readHeader(r)
}

func readHeader(r io.Reader) (Header, error) {
	var fixed [4 + 2 + 2 + layout.Size + 4]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return Header{}, truncated(err)
	}
	if [4]byte(fixed[:4]) != magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrInvalidImage, fixed[:4])
	}
	if v := binary.LittleEndian.Uint16(fixed[4:]); v != Version {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidImage, v)
	}

	var h Header
	h.Compression = Compression(fixed[6])
	if h.Compression > CompressionZSTD {
		return Header{}, fmt.Errorf("%w: compression %d", ErrInvalidImage, fixed[6])
	}
	if err := h.Descriptor.UnmarshalBinary(fixed[8 : 8+layout.Size]); err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	metaLen := binary.LittleEndian.Uint32(fixed[8+layout.Size:])
	if metaLen > MaxMetaSize {
		return Header{}, fmt.Errorf("%w: meta length %d", ErrInvalidImage, metaLen)
	}
	h.Meta = make([]byte, metaLen)
	if _, err := io.ReadFull(r, h.Meta); err != nil {
		return Header{}, truncated(err)
	}

	var tail [12]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return Header{}, truncated(err)
	}
	h.RegionLen = binary.LittleEndian.Uint64(tail[0:])
	h.BlockSize = binary.LittleEndian.Uint32(tail[8:])
	if h.BlockSize == 0 || h.BlockSize > maxBlockSize {
		return Header{}, fmt.Errorf("%w: block size %d", ErrInvalidImage, h.BlockSize)
	}
	return h, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated", ErrInvalidImage)
	}
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
