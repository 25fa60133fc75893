package datastore

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/hupe1980/rgraph/internal/kvstore"
	"github.com/hupe1980/rgraph/internal/table"
	"github.com/hupe1980/rgraph/model"
	"github.com/hupe1980/rgraph/resource"
)

// Config sizes the four parts of the region. The region is their sum.
type Config struct {
	VertexPropertyBytes uint64
	EdgePropertyBytes   uint64
	VertexTableBytes    uint64
	EdgeTableBytes      uint64

	// VertexExtRatio is the vertex table extension share in percent.
	VertexExtRatio int
	// EdgeExtRatio is the edge table extension share in percent.
	EdgeExtRatio int
	// HeaderRatio is the slot header share of each property store in percent.
	HeaderRatio int
}

// DefaultConfig returns ratios at their defaults and no sizes.
func DefaultConfig() Config {
	return Config{
		VertexExtRatio: table.DefaultVertexExtRatio,
		EdgeExtRatio:   table.DefaultEdgeExtRatio,
		HeaderRatio:    kvstore.DefaultHeaderRatio,
	}
}

// TotalBytes returns the region size.
func (c Config) TotalBytes() uint64 {
	return c.VertexPropertyBytes + c.EdgePropertyBytes + c.VertexTableBytes + c.EdgeTableBytes
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	rc      *resource.Controller
	workers int
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithResourceController accounts the region and load workers against rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithWorkers sets the number of bulk-load workers.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

func defaultOptions() options {
	return options{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers: runtime.GOMAXPROCS(0),
	}
}

// State holds the allocator counters of every structure in a store.
type State struct {
	VertexProps kvstore.State
	EdgeProps   kvstore.State
	Vertices    table.State
	Edges       table.EdgeState
}

// Manifest is what a region image needs besides the raw bytes: the sizes
// that fix the region split and the allocator counters.
type Manifest struct {
	Config Config
	State  State
}

const manifestFields = 18

// ManifestSize is the encoded size of a Manifest.
const ManifestSize = manifestFields * 8

func (m *Manifest) values() []uint64 {
	c, st := m.Config, m.State
	return []uint64{
		c.VertexPropertyBytes, c.EdgePropertyBytes, c.VertexTableBytes, c.EdgeTableBytes,
		uint64(c.VertexExtRatio), uint64(c.EdgeExtRatio), uint64(c.HeaderRatio),
		st.VertexProps.Keys, st.VertexProps.LastExt, st.VertexProps.EntryUse,
		st.EdgeProps.Keys, st.EdgeProps.LastExt, st.EdgeProps.EntryUse,
		st.Vertices.Records, st.Vertices.ExtUsed,
		st.Edges.Records, st.Edges.ExtUsed, st.Edges.Collisions,
	}
}

// MarshalBinary encodes the manifest as little-endian uint64 values.
func (m Manifest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, ManifestSize)
	for _, v := range m.values() {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	return buf, nil
}

// UnmarshalBinary decodes a manifest written by MarshalBinary.
func (m *Manifest) UnmarshalBinary(b []byte) error {
	if len(b) != ManifestSize {
		return fmt.Errorf("%w: manifest of %d bytes, want %d", model.ErrCorrupt, len(b), ManifestSize)
	}
	var v [manifestFields]uint64
	for i := range v {
		v[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	for _, r := range v[4:7] {
		if r >= 100 {
			return fmt.Errorf("%w: ratio %d", model.ErrCorrupt, r)
		}
	}

	m.Config = Config{
		VertexPropertyBytes: v[0],
		EdgePropertyBytes:   v[1],
		VertexTableBytes:    v[2],
		EdgeTableBytes:      v[3],
		VertexExtRatio:      int(v[4]),
		EdgeExtRatio:        int(v[5]),
		HeaderRatio:         int(v[6]),
	}
	m.State = State{
		VertexProps: kvstore.State{Keys: v[7], LastExt: v[8], EntryUse: v[9]},
		EdgeProps:   kvstore.State{Keys: v[10], LastExt: v[11], EntryUse: v[12]},
		Vertices:    table.State{Records: v[13], ExtUsed: v[14]},
		Edges: table.EdgeState{
			State:      table.State{Records: v[15], ExtUsed: v[16]},
			Collisions: v[17],
		},
	}
	return nil
}
