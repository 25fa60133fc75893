package rgraph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/hupe1980/rgraph/internal/accessor"
	"github.com/hupe1980/rgraph/internal/table"
	"github.com/hupe1980/rgraph/layout"
	"github.com/hupe1980/rgraph/model"
	"github.com/hupe1980/rgraph/transport"
)

type (
	// AccessStats breaks remote reads down by what they fetched.
	AccessStats = accessor.AccessStats
	// AccessCounter counts operations and the remote bytes they read.
	AccessCounter = accessor.Counter
)

// VertexInfo is the decoded summary of a vertex record.
type VertexInfo struct {
	ID        model.VertexID
	Label     model.Label
	InDegree  int
	OutDegree int
}

func vertexInfo(rec table.VertexRecord) VertexInfo {
	return VertexInfo{
		ID:        rec.ID,
		Label:     rec.Label,
		InDegree:  int(rec.InCount),
		OutDegree: int(rec.OutCount),
	}
}

// Graph is the compute-side view of a memory node region. Every method is
// one or two one-sided reads; vertex records are cached for the lifetime
// of the Graph. It is safe for concurrent use.
type Graph struct {
	pool    *transport.Pool
	acc     *accessor.Accessor
	names   *model.Dictionary
	logger  *Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// Connect opens a pool of connections to node and navigates the region
// with d. Dialing retries until it succeeds or ctx ends.
func Connect(ctx context.Context, fabric transport.Fabric, node transport.Node, d layout.Descriptor, optFns ...Option) (*Graph, error) {
	o := applyOptions(optFns)

	if err := d.Validate(); err != nil {
		return nil, err
	}
	names, err := model.NewDictionary(o.names)
	if err != nil {
		return nil, err
	}

	pool, err := transport.DialPool(ctx, fabric, node, o.poolSize,
		transport.WithLogger(o.logger.Logger),
		transport.WithRetryInterval(o.retryInterval),
	)
	o.logger.LogConnect(ctx, node, o.poolSize, err)
	if err != nil {
		return nil, err
	}

	acc, err := accessor.New(pool, d,
		accessor.WithBufferSize(o.bufferSize),
		accessor.WithLogger(o.logger.Logger),
	)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	return &Graph{
		pool:    pool,
		acc:     acc,
		names:   names,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}, nil
}

// ConnectRegistry fetches the descriptor published under name and connects.
// If reg is a layout.NameRegistry, the graph's name tables come along; a
// graph published without them resolves no names.
func ConnectRegistry(ctx context.Context, reg layout.Registry, name string, fabric transport.Fabric, node transport.Node, optFns ...Option) (*Graph, error) {
	d, err := reg.Fetch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("rgraph: fetch descriptor %s: %w", name, err)
	}
	if nr, ok := reg.(layout.NameRegistry); ok {
		names, err := nr.FetchNames(ctx, name)
		switch {
		case err == nil:
			optFns = append(slices.Clip(optFns), WithNames(names))
		case !errors.Is(err, layout.ErrNotPublished):
			return nil, fmt.Errorf("rgraph: fetch names %s: %w", name, err)
		}
	}
	return Connect(ctx, fabric, node, d, optFns...)
}

func (g *Graph) observe(ctx context.Context, kind string, key uint64, start time.Time, err error) error {
	g.metrics.RecordLookup(kind, time.Since(start), err)
	if !errors.Is(err, model.ErrNotFound) {
		g.logger.LogLookup(ctx, kind, key, err)
	}
	return translateError(err)
}

func (g *Graph) check() error {
	if g.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Names returns the name tables of the graph. It is never nil.
func (g *Graph) Names() *model.Dictionary {
	return g.names
}

// LabelName returns the name of a vertex label.
func (g *Graph) LabelName(l model.Label) (string, bool) {
	return g.names.Name(model.VertexLabelName, uint32(l))
}

// EdgeLabelName returns the name of an edge label.
func (g *Graph) EdgeLabelName(l model.Label) (string, bool) {
	return g.names.Name(model.EdgeLabelName, uint32(l))
}

// PropertyKeyName returns the name of a vertex property key.
func (g *Graph) PropertyKeyName(k model.PropertyKey) (string, bool) {
	return g.names.Name(model.VertexPropertyName, uint32(k))
}

// EdgePropertyKeyName returns the name of an edge property key.
func (g *Graph) EdgePropertyKeyName(k model.PropertyKey) (string, bool) {
	return g.names.Name(model.EdgePropertyName, uint32(k))
}

// VertexPropertyByName resolves key through the name tables and reads the
// property. An unknown key name matches ErrNotFound.
func (g *Graph) VertexPropertyByName(ctx context.Context, id model.VertexID, key string) (model.Value, bool, error) {
	k, ok := g.names.ID(model.VertexPropertyName, key)
	if !ok {
		return model.Value{}, false, fmt.Errorf("%w: vertex property key %q", ErrNotFound, key)
	}
	return g.VertexProperty(ctx, id, model.PropertyKey(k))
}

// EdgePropertyByName resolves key through the name tables and reads the
// property. An unknown key name matches ErrNotFound.
func (g *Graph) EdgePropertyByName(ctx context.Context, src, dst model.VertexID, key string) (model.Value, bool, error) {
	k, ok := g.names.ID(model.EdgePropertyName, key)
	if !ok {
		return model.Value{}, false, fmt.Errorf("%w: edge property key %q", ErrNotFound, key)
	}
	return g.EdgeProperty(ctx, src, dst, model.PropertyKey(k))
}

// Descriptor returns the layout the graph navigates with.
func (g *Graph) Descriptor() layout.Descriptor {
	return g.acc.Descriptor()
}

// Vertex reads the record of id. A missing vertex yields ErrNotFound.
func (g *Graph) Vertex(ctx context.Context, id model.VertexID) (VertexInfo, error) {
	if err := g.check(); err != nil {
		return VertexInfo{}, err
	}
	start := time.Now()
	rec, err := g.acc.GetVertex(ctx, id)
	if err = g.observe(ctx, LookupVertex, uint64(id), start, err); err != nil {
		return VertexInfo{}, err
	}
	return vertexInfo(rec), nil
}

// Vertices reads the records of ids with batched reads. Results are in
// input order.
func (g *Graph) Vertices(ctx context.Context, ids []model.VertexID) ([]VertexInfo, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	start := time.Now()
	recs, err := g.acc.GetVertexBatch(ctx, ids)
	g.metrics.RecordBatchLookup(len(ids), time.Since(start), err)
	if err != nil {
		return nil, translateError(err)
	}
	out := make([]VertexInfo, len(recs))
	for i, rec := range recs {
		out[i] = vertexInfo(rec)
	}
	return out, nil
}

// InNeighbors returns the vertices with an edge into id, with edge labels.
func (g *Graph) InNeighbors(ctx context.Context, id model.VertexID) ([]model.Neighbor, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	start := time.Now()
	ns, err := g.acc.GetInNeighbors(ctx, id)
	return ns, g.observe(ctx, LookupNeighbors, uint64(id), start, err)
}

// OutNeighbors returns the vertices id has an edge to, with edge labels.
func (g *Graph) OutNeighbors(ctx context.Context, id model.VertexID) ([]model.Neighbor, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	start := time.Now()
	ns, err := g.acc.GetOutNeighbors(ctx, id)
	return ns, g.observe(ctx, LookupNeighbors, uint64(id), start, err)
}

// VertexLabel returns the label of id.
func (g *Graph) VertexLabel(ctx context.Context, id model.VertexID) (model.Label, error) {
	if err := g.check(); err != nil {
		return 0, err
	}
	start := time.Now()
	l, err := g.acc.GetLabelForVertex(ctx, id)
	return l, g.observe(ctx, LookupLabel, uint64(id), start, err)
}

// EdgeLabel returns the label of the edge src→dst and whether it exists.
func (g *Graph) EdgeLabel(ctx context.Context, src, dst model.VertexID) (model.Label, bool, error) {
	if err := g.check(); err != nil {
		return 0, false, err
	}
	start := time.Now()
	l, ok, err := g.acc.GetLabelForEdge(ctx, src, dst)
	return l, ok, g.observe(ctx, LookupLabel, model.NewEdgeID(src, dst).Key(), start, err)
}

// HasEdge reports whether the edge table holds src→dst.
func (g *Graph) HasEdge(ctx context.Context, src, dst model.VertexID) (bool, error) {
	if err := g.check(); err != nil {
		return false, err
	}
	start := time.Now()
	eid := model.NewEdgeID(src, dst)
	_, err := g.acc.GetEdge(ctx, eid)
	err = g.observe(ctx, LookupEdge, eid.Key(), start, err)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// VertexProperty returns the property key of id and whether it is set.
func (g *Graph) VertexProperty(ctx context.Context, id model.VertexID, key model.PropertyKey) (model.Value, bool, error) {
	if err := g.check(); err != nil {
		return model.Value{}, false, err
	}
	pid, err := model.NewVertexPropertyID(id, key)
	if err != nil {
		return model.Value{}, false, err
	}
	start := time.Now()
	v, ok, err := g.acc.GetVertexProperty(ctx, pid)
	return v, ok, g.observe(ctx, LookupVertexProperty, pid.Key(), start, err)
}

// EdgeProperty returns the property key of the edge src→dst and whether
// it is set.
func (g *Graph) EdgeProperty(ctx context.Context, src, dst model.VertexID, key model.PropertyKey) (model.Value, bool, error) {
	if err := g.check(); err != nil {
		return model.Value{}, false, err
	}
	pid, err := model.NewEdgePropertyID(model.NewEdgeID(src, dst), key)
	if err != nil {
		return model.Value{}, false, err
	}
	start := time.Now()
	v, ok, err := g.acc.GetEdgeProperty(ctx, pid)
	return v, ok, g.observe(ctx, LookupEdgeProperty, pid.Key(), start, err)
}

// VertexPropertyKeys returns the property keys set on id.
func (g *Graph) VertexPropertyKeys(ctx context.Context, id model.VertexID) ([]model.PropertyKey, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	start := time.Now()
	keys, err := g.acc.GetVertexPropertyKeys(ctx, id)
	return keys, g.observe(ctx, LookupVertex, uint64(id), start, err)
}

// EdgePropertyKeys returns the property keys set on src→dst.
func (g *Graph) EdgePropertyKeys(ctx context.Context, src, dst model.VertexID) ([]model.PropertyKey, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	start := time.Now()
	eid := model.NewEdgeID(src, dst)
	keys, err := g.acc.GetEdgePropertyKeys(ctx, eid)
	return keys, g.observe(ctx, LookupEdge, eid.Key(), start, err)
}

// AllVertices reads every vertex slot and returns the occupied ones in id
// order. All of them are cached afterwards.
func (g *Graph) AllVertices(ctx context.Context) ([]VertexInfo, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	start := time.Now()
	recs, err := g.acc.GetAllVertices(ctx)
	g.metrics.RecordBatchLookup(int(g.acc.Descriptor().VNum), time.Since(start), err)
	if err != nil {
		return nil, translateError(err)
	}
	out := make([]VertexInfo, len(recs))
	for i, rec := range recs {
		out[i] = vertexInfo(rec)
	}
	return out, nil
}

// AllEdges returns the out-edges of every cached vertex. Call AllVertices
// first to cover the whole graph.
func (g *Graph) AllEdges(ctx context.Context) ([]model.EdgeID, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	edges, err := g.acc.GetAllEdges(ctx)
	return edges, translateError(err)
}

// CachedVertices returns the ids of cached vertices in ascending order.
func (g *Graph) CachedVertices() []model.VertexID {
	return g.acc.CachedVertices()
}

// AccessStats returns per-category read counts and bytes.
func (g *Graph) AccessStats() AccessStats {
	return g.acc.AccessStats()
}

// TransportMetrics returns the counters of the connection pool.
func (g *Graph) TransportMetrics() transport.MetricsSnapshot {
	return g.pool.Metrics().Snapshot()
}

// Close closes every connection.
func (g *Graph) Close() error {
	if g.closed.Swap(true) {
		return nil
	}
	return g.pool.Close()
}
