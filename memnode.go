package rgraph

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/hupe1980/rgraph/blobstore"
	"github.com/hupe1980/rgraph/internal/datastore"
	"github.com/hupe1980/rgraph/internal/kvstore"
	"github.com/hupe1980/rgraph/internal/snapshot"
	"github.com/hupe1980/rgraph/internal/table"
	"github.com/hupe1980/rgraph/layout"
	"github.com/hupe1980/rgraph/model"
	"github.com/hupe1980/rgraph/resource"
	"github.com/hupe1980/rgraph/transport"
)

// RemoteRegionID is the rkey the region is registered under.
const RemoteRegionID = transport.RemoteRegionID

// Compression selects the snapshot block codec.
type Compression = snapshot.Compression

// Snapshot codecs.
const (
	CompressionNone = snapshot.CompressionNone
	CompressionLZ4  = snapshot.CompressionLZ4
	CompressionZSTD = snapshot.CompressionZSTD
)

type (
	// LoadStats summarizes a bulk load.
	LoadStats = datastore.LoadStats
	// StoreUsage is the fill level of a property store.
	StoreUsage = kvstore.Usage
	// TableUsage is the fill level of a vertex or edge table.
	TableUsage = table.Usage
)

// Usage reports the fill level of every structure in a region.
type Usage struct {
	Region           Size
	VertexProperties StoreUsage
	EdgeProperties   StoreUsage
	Vertices         TableUsage
	Edges            TableUsage
	// EdgeCollisions counts edges overwritten in the hashed edge table.
	EdgeCollisions uint64
}

// ErrNotLoaded is returned when serving, publishing or snapshotting a
// memory node that was neither loaded nor restored.
var ErrNotLoaded = errors.New("rgraph: memory node not loaded")

// MemoryNode owns a region, bulk-loads a graph into it and serves it to
// compute nodes. After Load or RestoreMemoryNode the region is read-only.
type MemoryNode struct {
	store   *datastore.Store
	opts    options
	logger  *Logger
	metrics MetricsCollector
	loaded  atomic.Bool
	names   atomic.Pointer[model.Dictionary]
}

// OpenMemoryNode maps a zeroed region sized by cfg.
func OpenMemoryNode(cfg RegionConfig, optFns ...Option) (*MemoryNode, error) {
	o := applyOptions(optFns)
	store, err := datastore.Open(cfg.storeConfig(), storeOptions(o)...)
	if err != nil {
		return nil, translateError(err)
	}
	return newMemoryNode(store, o), nil
}

func newMemoryNode(store *datastore.Store, o options) *MemoryNode {
	return &MemoryNode{
		store:   store,
		opts:    o,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}
}

func storeOptions(o options) []datastore.Option {
	return []datastore.Option{
		datastore.WithLogger(o.logger.Logger),
		datastore.WithResourceController(o.rc),
		datastore.WithWorkers(o.workers),
	}
}

// Config returns the region configuration.
func (n *MemoryNode) Config() RegionConfig {
	return regionConfig(n.store.Config())
}

// Load bulk-loads g. It runs once; a second call returns ErrFrozen. Any
// capacity or duplicate error aborts the load and leaves the node unusable.
func (n *MemoryNode) Load(ctx context.Context, g *model.Graph) (LoadStats, error) {
	if g == nil {
		return LoadStats{}, errors.New("rgraph: nil graph")
	}
	names, err := model.NewDictionary(g.Names)
	if err != nil {
		return LoadStats{}, fmt.Errorf("rgraph: name tables: %w", err)
	}
	start := time.Now()
	stats, err := n.store.Load(ctx, g)
	err = translateError(err)
	if err == nil {
		n.names.Store(names)
		n.loaded.Store(true)
	}

	n.metrics.RecordLoad(len(g.Vertices), len(g.Edges), time.Since(start), err)
	n.logger.LogLoad(ctx, len(g.Vertices), len(g.Edges), time.Since(start), err)
	if err == nil && stats.EdgeCollisions > 0 {
		n.logger.WarnContext(ctx, "edge table collisions during load",
			"collisions", stats.EdgeCollisions,
		)
	}
	return stats, err
}

// Loaded reports whether the region was successfully loaded or restored.
func (n *MemoryNode) Loaded() bool {
	return n.loaded.Load()
}

// Names returns the name tables loaded or restored with the region. It is
// nil before that.
func (n *MemoryNode) Names() *model.Dictionary {
	return n.names.Load()
}

// Descriptor returns the layout compute nodes navigate the region with.
func (n *MemoryNode) Descriptor() layout.Descriptor {
	return n.store.Descriptor()
}

// Usage scans the region and reports how full each structure is.
func (n *MemoryNode) Usage() Usage {
	u := n.store.Usage()
	return Usage{
		Region:           Size(n.store.Config().TotalBytes()),
		VertexProperties: u.VertexProps,
		EdgeProperties:   u.EdgeProps,
		Vertices:         u.Vertices,
		Edges:            u.Edges,
		EdgeCollisions:   u.Edges.Collisions,
	}
}

// Publish stores the descriptor under name in reg. Name tables are stored
// first when there are any and reg is a layout.NameRegistry; other
// registries get the descriptor alone.
func (n *MemoryNode) Publish(ctx context.Context, reg layout.Registry, name string) error {
	if !n.Loaded() {
		return ErrNotLoaded
	}
	err := n.publishNames(ctx, reg, name)
	if err == nil {
		err = reg.Publish(ctx, name, n.Descriptor())
	}
	n.logger.LogPublish(ctx, name, err)
	return err
}

func (n *MemoryNode) publishNames(ctx context.Context, reg layout.Registry, name string) error {
	names := n.Names().Names()
	if names.IsZero() {
		return nil
	}
	nr, ok := reg.(layout.NameRegistry)
	if !ok {
		n.logger.WarnContext(ctx, "registry does not keep name tables", "name", name)
		return nil
	}
	return nr.PublishNames(ctx, name, names)
}

// Fabric returns an in-process fabric over the region.
func (n *MemoryNode) Fabric(opts ...transport.LoopbackOption) *transport.Loopback {
	return transport.NewLoopback(n.store.Bytes(), RemoteRegionID, opts...)
}

// Serve answers one-sided reads from compute nodes on ln until ctx ends.
// The node must not be closed while Serve runs.
func (n *MemoryNode) Serve(ctx context.Context, ln net.Listener) error {
	if !n.Loaded() {
		return ErrNotLoaded
	}
	srv := transport.NewServer(n.store.Bytes(), RemoteRegionID,
		transport.WithServerLogger(n.logger.Logger),
		transport.WithIOController(n.opts.rc),
	)
	return srv.Serve(ctx, ln)
}

// Snapshot writes an image of the region to store under name and returns
// its size. Writes are charged against the resource controller's IO budget.
func (n *MemoryNode) Snapshot(ctx context.Context, store blobstore.BlobStore, name string) (int64, error) {
	start := time.Now()
	size, err := n.snapshot(ctx, store, name)
	n.metrics.RecordSnapshot(size, time.Since(start), err)
	n.logger.LogSnapshot(ctx, name, size, err)
	return size, err
}

func (n *MemoryNode) snapshot(ctx context.Context, store blobstore.BlobStore, name string) (int64, error) {
	if !n.Loaded() {
		return 0, ErrNotLoaded
	}
	meta, err := n.store.Manifest().MarshalBinary()
	if err != nil {
		return 0, err
	}
	if names := n.Names().Names(); !names.IsZero() {
		b, err := json.Marshal(names)
		if err != nil {
			return 0, err
		}
		meta = append(meta, b...)
	}

	blob, err := store.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriterSize(resource.NewRateLimitedWriter(ctx, blob, n.opts.rc), snapshot.BlockSize)

	size, err := snapshot.Write(ctx, bw, snapshot.Header{
		Compression: n.opts.compression,
		Descriptor:  n.Descriptor(),
		Meta:        meta,
	}, n.store.Bytes())
	if err == nil {
		err = bw.Flush()
	}
	if err == nil {
		err = blob.Sync()
	}
	if cerr := blob.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = store.Delete(context.WithoutCancel(ctx), name)
		return 0, fmt.Errorf("rgraph: snapshot %s: %w", name, err)
	}
	return size, nil
}

// RestoreMemoryNode maps a region sized by the image under name and fills
// it from the image. The result is loaded and ready to serve.
func RestoreMemoryNode(ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option) (*MemoryNode, error) {
	o := applyOptions(optFns)
	start := time.Now()

	ds, names, size, err := restore(ctx, store, name, o)
	o.metricsCollector.RecordSnapshot(size, time.Since(start), err)
	if err != nil {
		o.logger.LogSnapshot(ctx, name, size, err)
		return nil, err
	}
	o.logger.InfoContext(ctx, "region restored",
		"name", name,
		"size", Size(size).String(),
		"duration", time.Since(start),
	)
	n := newMemoryNode(ds, o)
	n.names.Store(names)
	n.loaded.Store(true)
	return n, nil
}

// splitMeta separates the image metadata into the manifest and the
// optional name tables that follow it.
func splitMeta(meta []byte) (datastore.Manifest, *model.Dictionary, error) {
	var m datastore.Manifest
	if len(meta) < datastore.ManifestSize {
		return m, nil, fmt.Errorf("%w: metadata of %d bytes, want at least %d", ErrCorrupt, len(meta), datastore.ManifestSize)
	}
	if err := m.UnmarshalBinary(meta[:datastore.ManifestSize]); err != nil {
		return m, nil, err
	}
	var names model.Names
	if rest := meta[datastore.ManifestSize:]; len(rest) > 0 {
		if err := json.Unmarshal(rest, &names); err != nil {
			return m, nil, fmt.Errorf("%w: name tables: %w", ErrCorrupt, err)
		}
	}
	d, err := model.NewDictionary(names)
	return m, d, err
}

func restore(ctx context.Context, store blobstore.BlobStore, name string, o options) (*datastore.Store, *model.Dictionary, int64, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, nil, 0, err
	}
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return nil, nil, 0, err
	}
	defer rc.Close()

	var (
		ds       *datastore.Store
		manifest datastore.Manifest
		names    *model.Dictionary
	)
	_, err = snapshot.Read(ctx, resource.NewRateLimitedReader(ctx, rc, o.rc), func(h snapshot.Header) ([]byte, error) {
		var err error
		if manifest, names, err = splitMeta(h.Meta); err != nil {
			return nil, err
		}
		if total := manifest.Config.TotalBytes(); total != h.RegionLen {
			return nil, fmt.Errorf("%w: manifest sizes sum to %d, image holds %d", ErrCorrupt, total, h.RegionLen)
		}
		s, err := datastore.Open(manifest.Config, storeOptions(o)...)
		if err != nil {
			return nil, err
		}
		ds = s
		if d := s.Descriptor(); d != h.Descriptor {
			return nil, fmt.Errorf("%w: image descriptor does not match its configuration", ErrCorrupt)
		}
		return s.Bytes(), nil
	})
	if err == nil {
		err = ds.Restore(manifest.State)
	}
	if err != nil {
		if ds != nil {
			_ = ds.Close()
		}
		return nil, nil, blob.Size(), fmt.Errorf("rgraph: restore %s: %w", name, translateError(err))
	}
	return ds, names, blob.Size(), nil
}

// Close unmaps the region. Servers and fabrics over it must be stopped first.
func (n *MemoryNode) Close() error {
	return n.store.Close()
}
