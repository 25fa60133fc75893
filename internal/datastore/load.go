package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/rgraph/internal/table"
	"github.com/hupe1980/rgraph/model"
)

// adjacency holds the neighbor lists of every vertex in edge input order.
type adjacency struct {
	in  map[model.VertexID][]model.Neighbor
	out map[model.VertexID][]model.Neighbor
}

// LoadStats summarizes a bulk load.
type LoadStats struct {
	Vertices       int
	Edges          int
	EdgeCollisions uint64
	Duration       time.Duration
}

// Load writes g into the region and freezes the store.
//
// Vertices are loaded first, then edges, each by a group of workers over
// contiguous partitions. The first error cancels the remaining workers and
// is returned. The store stays frozen after a failed load; its contents
// are then undefined.
func (s *Store) Load(ctx context.Context, g *model.Graph) (LoadStats, error) {
	if s.closed.Load() {
		return LoadStats{}, ErrClosed
	}
	if !s.frozen.CompareAndSwap(false, true) {
		return LoadStats{}, ErrFrozen
	}

	start := time.Now()
	adj, err := s.prepare(g)
	if err != nil {
		return LoadStats{}, err
	}

	err = s.parallel(ctx, len(g.Vertices), func(i int) error {
		return s.loadVertex(&g.Vertices[i], adj)
	})
	if err != nil {
		return LoadStats{}, fmt.Errorf("datastore: load vertices: %w", err)
	}

	err = s.parallel(ctx, len(g.Edges), func(i int) error {
		return s.loadEdge(&g.Edges[i])
	})
	if err != nil {
		return LoadStats{}, fmt.Errorf("datastore: load edges: %w", err)
	}

	s.serve()

	stats := LoadStats{
		Vertices:       len(g.Vertices),
		Edges:          len(g.Edges),
		EdgeCollisions: s.et.Collisions(),
		Duration:       time.Since(start),
	}
	s.logger.InfoContext(ctx, "bulk load complete",
		"vertices", stats.Vertices,
		"edges", stats.Edges,
		"edge_collisions", stats.EdgeCollisions,
		"workers", s.opts.workers,
		"duration", stats.Duration,
	)
	return stats, nil
}

// prepare validates ids and builds adjacency before anything is written.
func (s *Store) prepare(g *model.Graph) (adjacency, error) {
	vids := roaring.New()
	for _, v := range g.Vertices {
		if !v.ID.Valid() {
			return adjacency{}, fmt.Errorf("%w: vertex %d", model.ErrInvalidID, v.ID)
		}
		if uint64(v.ID) >= s.vt.NumRecords() {
			return adjacency{}, &table.CapacityError{
				Region:    "vertex table",
				Requested: uint64(v.ID) + 1,
				Capacity:  s.vt.NumRecords(),
			}
		}
		if !vids.CheckedAdd(uint32(v.ID)) {
			return adjacency{}, fmt.Errorf("%w: vertex %d", model.ErrDuplicateKey, v.ID)
		}
	}

	adj := adjacency{
		in:  make(map[model.VertexID][]model.Neighbor),
		out: make(map[model.VertexID][]model.Neighbor),
	}
	eids := roaring64.New()
	for _, e := range g.Edges {
		id := e.ID()
		if !vids.Contains(uint32(e.Src)) || !vids.Contains(uint32(e.Dst)) {
			return adjacency{}, fmt.Errorf("%w: endpoint of edge %s", model.ErrNotFound, id)
		}
		if !eids.CheckedAdd(uint64(id)) {
			return adjacency{}, fmt.Errorf("%w: edge %s", model.ErrDuplicateKey, id)
		}
		adj.out[e.Src] = append(adj.out[e.Src], model.Neighbor{ID: e.Dst, Label: e.Label})
		adj.in[e.Dst] = append(adj.in[e.Dst], model.Neighbor{ID: e.Src, Label: e.Label})
	}
	return adj, nil
}

// parallel runs fn for every index in [0, n) on contiguous partitions.
func (s *Store) parallel(ctx context.Context, n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	workers := min(s.opts.workers, n)
	chunk := (n + workers - 1) / workers

	eg, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		eg.Go(func() error {
			if err := s.opts.rc.AcquireWorker(ctx); err != nil {
				return err
			}
			defer s.opts.rc.ReleaseWorker()

			for i := lo; i < hi; i++ {
				if (i-lo)%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return eg.Wait()
}

func (s *Store) loadVertex(v *model.Vertex, adj adjacency) error {
	rec := table.VertexRecord{ID: v.ID, Label: v.Label}

	in := adj.in[v.ID]
	rec.InCount = uint32(len(in))
	n := copy(rec.In[:], in)
	ext, err := s.vt.WriteExtension(table.EncodeNeighbors(in[n:]))
	if err != nil {
		return err
	}
	rec.InExt = ext

	out := adj.out[v.ID]
	rec.OutCount = uint32(len(out))
	n = copy(rec.Out[:], out)
	if ext, err = s.vt.WriteExtension(table.EncodeNeighbors(out[n:])); err != nil {
		return err
	}
	rec.OutExt = ext

	if err := s.putVertexProperty(v.ID, model.LabelKey, model.Int(int64(v.Label))); err != nil {
		return err
	}
	keys := make([]model.PropertyKey, 0, len(v.Properties))
	for _, p := range v.Properties {
		if p.Key == model.LabelKey {
			return fmt.Errorf("%w: vertex %d uses reserved property key 0", model.ErrInvalidID, v.ID)
		}
		if err := s.putVertexProperty(v.ID, p.Key, p.Value); err != nil {
			return err
		}
		keys = append(keys, p.Key)
	}
	n = copy(rec.Props[:], keys)
	if ext, err = s.vt.WriteExtension(table.EncodePropertyKeys(keys[n:])); err != nil {
		return err
	}
	rec.PropExt = ext

	return s.vt.Insert(rec)
}

func (s *Store) putVertexProperty(vid model.VertexID, key model.PropertyKey, v model.Value) error {
	pid, err := model.NewVertexPropertyID(vid, key)
	if err != nil {
		return err
	}
	return s.vp.Insert(pid.Key(), v)
}

func (s *Store) loadEdge(e *model.Edge) error {
	id := e.ID()
	rec := table.EdgeRecord{ID: id}

	if err := s.putEdgeProperty(id, model.LabelKey, model.Int(int64(e.Label))); err != nil {
		return err
	}
	keys := make([]model.PropertyKey, 0, len(e.Properties))
	for _, p := range e.Properties {
		if p.Key == model.LabelKey {
			return fmt.Errorf("%w: edge %s uses reserved property key 0", model.ErrInvalidID, id)
		}
		if err := s.putEdgeProperty(id, p.Key, p.Value); err != nil {
			return err
		}
		keys = append(keys, p.Key)
	}
	n := copy(rec.Props[:], keys)
	ext, err := s.et.WriteExtension(table.EncodePropertyKeys(keys[n:]))
	if err != nil {
		return err
	}
	rec.PropExt = ext

	_, err = s.et.Insert(rec)
	return err
}

func (s *Store) putEdgeProperty(eid model.EdgeID, key model.PropertyKey, v model.Value) error {
	pid, err := model.NewEdgePropertyID(eid, key)
	if err != nil {
		return err
	}
	return s.ep.Insert(pid.Key(), v)
}
