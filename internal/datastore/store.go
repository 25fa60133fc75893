package datastore

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/hupe1980/rgraph/internal/arena"
	"github.com/hupe1980/rgraph/internal/kvstore"
	"github.com/hupe1980/rgraph/internal/mmap"
	"github.com/hupe1980/rgraph/internal/table"
	"github.com/hupe1980/rgraph/layout"
	"github.com/hupe1980/rgraph/resource"
)

var (
	// ErrFrozen is returned when loading a store that was already loaded or restored.
	ErrFrozen = errors.New("datastore: frozen")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("datastore: closed")
)

// Store owns the registered region of a memory node and every structure
// laid out in it:
//
//	[ vertex properties | edge properties | vertex table | edge table ]
type Store struct {
	cfg     Config
	mapping *mmap.Mapping
	region  *arena.Region

	vp *kvstore.Store
	ep *kvstore.Store
	vt *table.VertexTable
	et *table.EdgeTable

	frozen atomic.Bool
	closed atomic.Bool

	opts   options
	logger *slog.Logger
}

// Open maps a zeroed region of cfg.TotalBytes() and lays every structure
// over it.
func Open(cfg Config, optFns ...Option) (*Store, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	total := cfg.TotalBytes()
	if total == 0 || total > math.MaxInt64 {
		return nil, fmt.Errorf("datastore: invalid region size %d", total)
	}
	if err := o.rc.AcquireMemory(int64(total)); err != nil {
		return nil, fmt.Errorf("datastore: reserve region: %w", err)
	}

	m, err := mmap.MapAnon(int(total))
	if err != nil {
		o.rc.ReleaseMemory(int64(total))
		return nil, fmt.Errorf("datastore: map region: %w", err)
	}

	s, err := build(cfg, m, o)
	if err != nil {
		_ = m.Close()
		o.rc.ReleaseMemory(int64(total))
		return nil, err
	}

	s.logger.Info("region mapped",
		"bytes", total,
		"vertex_capacity", s.vt.NumRecords(),
		"edge_capacity", s.et.NumRecords(),
	)
	return s, nil
}

func build(cfg Config, m *mmap.Mapping, o options) (*Store, error) {
	root := arena.NewRegion(m.Bytes())

	var off uint64
	next := func(n uint64) (*arena.Region, error) {
		r, err := root.Sub(off, n)
		off += n
		return r, err
	}

	vpRegion, err := next(cfg.VertexPropertyBytes)
	if err != nil {
		return nil, err
	}
	epRegion, err := next(cfg.EdgePropertyBytes)
	if err != nil {
		return nil, err
	}
	vtRegion, err := next(cfg.VertexTableBytes)
	if err != nil {
		return nil, err
	}
	etRegion, err := next(cfg.EdgeTableBytes)
	if err != nil {
		return nil, err
	}

	vp, err := kvstore.New("vertex properties", vpRegion,
		kvstore.WithHeaderRatio(cfg.HeaderRatio), kvstore.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("datastore: vertex property store: %w", err)
	}
	ep, err := kvstore.New("edge properties", epRegion,
		kvstore.WithHeaderRatio(cfg.HeaderRatio), kvstore.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("datastore: edge property store: %w", err)
	}
	vt, err := table.NewVertexTable(vtRegion,
		table.WithExtRatio(cfg.VertexExtRatio), table.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("datastore: vertex table: %w", err)
	}
	et, err := table.NewEdgeTable(etRegion,
		table.WithExtRatio(cfg.EdgeExtRatio), table.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("datastore: edge table: %w", err)
	}

	return &Store{
		cfg:     cfg,
		mapping: m,
		region:  root,
		vp:      vp,
		ep:      ep,
		vt:      vt,
		et:      et,
		opts:    o,
		logger:  o.logger,
	}, nil
}

// Config returns the configuration the store was opened with.
func (s *Store) Config() Config {
	return s.cfg
}

// Bytes returns the whole region. It is what a fabric registers.
func (s *Store) Bytes() []byte {
	return s.region.Bytes()
}

// Frozen reports whether the store was loaded or restored.
func (s *Store) Frozen() bool {
	return s.frozen.Load()
}

// Descriptor returns the layout a compute node needs to navigate the region.
func (s *Store) Descriptor() layout.Descriptor {
	vp, ep := s.vp.Layout(), s.ep.Layout()
	return layout.Descriptor{
		VArrayOff: s.vt.ArrayOffset(),
		VExtOff:   s.vt.ExtOffset(),
		VNum:      s.vt.NumRecords(),
		EArrayOff: s.et.ArrayOffset(),
		EExtOff:   s.et.ExtOffset(),
		ENum:      s.et.NumRecords(),
		VPOff:     vp.Offset,
		VPSlots:   vp.NumSlots,
		VPBuckets: vp.NumBuckets,
		EPOff:     ep.Offset,
		EPSlots:   ep.NumSlots,
		EPBuckets: ep.NumBuckets,
	}
}

// Usage reports the fill level of every structure.
type Usage struct {
	VertexProps kvstore.Usage
	EdgeProps   kvstore.Usage
	Vertices    table.Usage
	Edges       table.Usage
}

// Usage scans the stores and reports their fill levels.
func (s *Store) Usage() Usage {
	return Usage{
		VertexProps: s.vp.Usage(),
		EdgeProps:   s.ep.Usage(),
		Vertices:    s.vt.Usage(),
		Edges:       s.et.Usage(),
	}
}

// Manifest returns the configuration and allocator state of the store.
func (s *Store) Manifest() Manifest {
	return Manifest{
		Config: s.cfg,
		State: State{
			VertexProps: s.vp.State(),
			EdgeProps:   s.ep.State(),
			Vertices:    s.vt.State(),
			Edges:       s.et.State(),
		},
	}
}

// Restore freezes a store whose region was filled from an image taken of
// a store with the same configuration.
func (s *Store) Restore(st State) error {
	if !s.frozen.CompareAndSwap(false, true) {
		return ErrFrozen
	}
	if err := s.vp.Restore(st.VertexProps); err != nil {
		return err
	}
	if err := s.ep.Restore(st.EdgeProps); err != nil {
		return err
	}
	s.vt.Restore(st.Vertices)
	s.et.Restore(st.Edges)
	s.serve()
	return nil
}

// serve tunes the region for random one-sided reads.
func (s *Store) serve() {
	if err := s.mapping.Advise(mmap.AccessRandom); err != nil {
		s.logger.Warn("madvise failed", "error", err)
	}
}

// Close unmaps the region. Any fabric serving it must be stopped first.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.mapping.Close()
	s.opts.rc.ReleaseMemory(int64(s.cfg.TotalBytes()))
	return err
}

// Controller returns the resource controller the store accounts against.
func (s *Store) Controller() *resource.Controller {
	return s.opts.rc
}
