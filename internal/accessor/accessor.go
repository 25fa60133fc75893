package accessor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/rgraph/internal/cache"
	"github.com/hupe1980/rgraph/internal/kvstore"
	"github.com/hupe1980/rgraph/layout"
	"github.com/hupe1980/rgraph/transport"
)

// DefaultBufferSize is the batch buffer size in bytes.
const DefaultBufferSize = 4096

// ErrInvalidArgument is returned for an unusable option value.
var ErrInvalidArgument = errors.New("accessor: invalid argument")

// Option configures an Accessor.
type Option func(*options)

type options struct {
	bufferSize int
	logger     *slog.Logger
	cache      *cache.VertexCache
}

// WithBufferSize sets the batch buffer size in bytes. A batch reads
// bufferSize/96 vertex records per round trip.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCache shares a vertex cache between accessors of the same region.
func WithCache(c *cache.VertexCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// Accessor navigates a remote region with one-sided reads.
// It is safe for concurrent use if its reader is.
type Accessor struct {
	r     transport.Reader
	d     layout.Descriptor
	vp    kvstore.StoreLayout
	ep    kvstore.StoreLayout
	cache *cache.VertexCache

	// eExtEnd bounds the edge extension heap. Zero when the reader does
	// not report the remote region length.
	eExtEnd uint64

	chunk      int
	bufferSize int
	stats      accessCounters
	logger     *slog.Logger
}

// regionReporter is implemented by transport connections and pools.
type regionReporter interface {
	RemoteRegion() transport.RegionInfo
}

// New creates an accessor for the region described by d.
func New(r transport.Reader, d layout.Descriptor, optFns ...Option) (*Accessor, error) {
	o := options{
		bufferSize: DefaultBufferSize,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range optFns {
		fn(&o)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	chunk := o.bufferSize / vertexRecordSize
	if chunk == 0 {
		return nil, fmt.Errorf("%w: buffer of %d bytes holds no vertex record", ErrInvalidArgument, o.bufferSize)
	}
	if o.cache == nil {
		o.cache = cache.NewVertexCache()
	}
	var eExtEnd uint64
	if rr, ok := r.(regionReporter); ok {
		eExtEnd = rr.RemoteRegion().Length
		if eExtEnd < d.EExtOff {
			return nil, fmt.Errorf("%w: edge extension at %d beyond remote region of %d bytes",
				layout.ErrInvalidDescriptor, d.EExtOff, eExtEnd)
		}
	}

	return &Accessor{
		r:          r,
		d:          d,
		vp:         kvstore.StoreLayout{Offset: d.VPOff, NumSlots: d.VPSlots, NumBuckets: d.VPBuckets},
		ep:         kvstore.StoreLayout{Offset: d.EPOff, NumSlots: d.EPSlots, NumBuckets: d.EPBuckets},
		cache:      o.cache,
		eExtEnd:    eExtEnd,
		chunk:      chunk,
		bufferSize: o.bufferSize,
		logger:     o.logger,
	}, nil
}

// Descriptor returns the layout the accessor navigates.
func (a *Accessor) Descriptor() layout.Descriptor {
	return a.d
}

// BatchSize returns the number of vertex records read per round trip.
func (a *Accessor) BatchSize() int {
	return a.chunk
}

// Cache returns the vertex cache.
func (a *Accessor) Cache() *cache.VertexCache {
	return a.cache
}
