package table

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/hupe1980/rgraph/internal/arena"
	"github.com/hupe1980/rgraph/model"
)

const (
	// DefaultVertexExtRatio is the share of the vertex table, in percent,
	// reserved for the extension heap.
	DefaultVertexExtRatio = 20
	// DefaultEdgeExtRatio is the share of the edge table, in percent,
	// reserved for the extension heap.
	DefaultEdgeExtRatio = 10
)

// ErrInvalidGeometry is returned when a region cannot hold a single record.
var ErrInvalidGeometry = errors.New("table: invalid geometry")

// CapacityError reports a full record array or extension heap.
// It matches model.ErrCapacity.
type CapacityError struct {
	Region    string
	Requested uint64
	Capacity  uint64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %v: requested %d, capacity %d", e.Region, model.ErrCapacity, e.Requested, e.Capacity)
}

func (e *CapacityError) Is(target error) bool {
	return target == model.ErrCapacity
}

// Geometry is the split of a table region into record array and extension heap.
type Geometry struct {
	// NumRecords is the record capacity N.
	NumRecords uint64
	// ArrayBytes is NumRecords times the record size.
	ArrayBytes uint64
	// ExtBytes is the rest of the region.
	ExtBytes uint64
}

// ComputeGeometry splits total bytes: extRatio percent go to the extension
// heap, the rest holds as many whole records as fit. Bytes left over by the
// rounding are added to the extension heap.
func ComputeGeometry(total uint64, recordSize uint64, extRatio int) (Geometry, error) {
	if extRatio < 0 || extRatio >= 100 {
		return Geometry{}, fmt.Errorf("%w: ext ratio %d", ErrInvalidGeometry, extRatio)
	}
	ext := total * uint64(extRatio) / 100
	n := (total - ext) / recordSize
	if n == 0 {
		return Geometry{}, fmt.Errorf("%w: %d bytes hold no %d-byte record", ErrInvalidGeometry, total, recordSize)
	}
	return Geometry{
		NumRecords: n,
		ArrayBytes: n * recordSize,
		ExtBytes:   total - n*recordSize,
	}, nil
}

// Option configures a table.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	extRatio int
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithExtRatio sets the extension heap share in percent.
func WithExtRatio(ratio int) Option {
	return func(o *options) {
		o.extRatio = ratio
	}
}

// base is the part shared by vertex and edge tables: a record array
// followed by an extension heap inside one region.
type base struct {
	name       string
	recordSize uint64
	geo        Geometry
	array      *arena.Region
	ext        *arena.Region
	bump       *arena.Bump
	records    atomic.Uint64
	logger     *slog.Logger
}

func newBase(name string, region *arena.Region, recordSize uint64, defaultRatio int, opts []Option) (*base, error) {
	o := options{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		extRatio: defaultRatio,
	}
	for _, opt := range opts {
		opt(&o)
	}

	geo, err := ComputeGeometry(region.Len(), recordSize, o.extRatio)
	if err != nil {
		return nil, err
	}
	array, err := region.Sub(0, geo.ArrayBytes)
	if err != nil {
		return nil, err
	}
	ext, err := region.Sub(geo.ArrayBytes, geo.ExtBytes)
	if err != nil {
		return nil, err
	}

	return &base{
		name:       name,
		recordSize: recordSize,
		geo:        geo,
		array:      array,
		ext:        ext,
		bump:       arena.NewBump(geo.ExtBytes, 1),
		logger:     o.logger,
	}, nil
}

// Geometry returns the table geometry.
func (t *base) Geometry() Geometry {
	return t.geo
}

// NumRecords returns the record capacity N.
func (t *base) NumRecords() uint64 {
	return t.geo.NumRecords
}

// ArrayOffset returns the offset of the record array within the root region.
func (t *base) ArrayOffset() uint64 {
	return t.array.Base()
}

// ExtOffset returns the offset of the extension heap within the root region.
func (t *base) ExtOffset() uint64 {
	return t.ext.Base()
}

func (t *base) slot(i uint64) ([]byte, error) {
	return t.array.Record(0, t.recordSize, i)
}

// AllocateExtension reserves size bytes of the extension heap and returns
// their offset. Ranges are never reused.
func (t *base) AllocateExtension(size uint64) (uint64, error) {
	off, err := t.bump.Alloc(size)
	if err != nil {
		return 0, &CapacityError{
			Region:    t.name + " extension",
			Requested: t.bump.Used() + size,
			Capacity:  t.bump.Capacity(),
		}
	}
	return off, nil
}

// WriteExtension copies data into a fresh extension range and returns its pointer.
func (t *base) WriteExtension(data []byte) (arena.Ptr, error) {
	if len(data) == 0 {
		return arena.Ptr{}, nil
	}
	off, err := t.AllocateExtension(uint64(len(data)))
	if err != nil {
		return arena.Ptr{}, err
	}
	ptr, err := arena.NewPtr(uint64(len(data)), off)
	if err != nil {
		return arena.Ptr{}, err
	}
	dst, err := t.Extension(ptr)
	if err != nil {
		return arena.Ptr{}, err
	}
	copy(dst, data)
	return ptr, nil
}

// Extension returns a writable view of the range ptr addresses.
func (t *base) Extension(ptr arena.Ptr) ([]byte, error) {
	b, err := t.ext.Slice(ptr.Off, uint64(ptr.Size))
	if err != nil {
		return nil, fmt.Errorf("%w: %s extension %s: %w", model.ErrCorrupt, t.name, ptr, err)
	}
	return b, nil
}

// Usage describes how full a table is.
type Usage struct {
	Records     uint64
	Capacity    uint64
	ExtUsed     uint64
	ExtCapacity uint64
	Collisions  uint64
}

// State is the allocator state needed to resume a table over a restored region.
type State struct {
	Records uint64
	ExtUsed uint64
}

func (t *base) state() State {
	return State{Records: t.records.Load(), ExtUsed: t.bump.Used()}
}

func (t *base) restore(s State) {
	t.records.Store(s.Records)
	t.bump.SetUsed(s.ExtUsed)
}
