package accessor

import (
	"context"
	"fmt"

	"github.com/hupe1980/rgraph/internal/arena"
	"github.com/hupe1980/rgraph/internal/table"
	"github.com/hupe1980/rgraph/model"
	"github.com/hupe1980/rgraph/transport"
)

const vertexRecordSize = table.VertexRecordSize

func (a *Accessor) checkVertex(id model.VertexID) error {
	if id == 0 || uint64(id) >= a.d.VNum {
		return fmt.Errorf("%w: vertex %d outside [1, %d)", model.ErrInvalidID, id, a.d.VNum)
	}
	return nil
}

func (a *Accessor) vertexOffset(id model.VertexID) uint64 {
	return a.d.VArrayOff + uint64(id)*vertexRecordSize
}

// GetVertex reads the record of id and caches it.
func (a *Accessor) GetVertex(ctx context.Context, id model.VertexID) (table.VertexRecord, error) {
	if err := a.checkVertex(id); err != nil {
		return table.VertexRecord{}, err
	}

	var buf [vertexRecordSize]byte
	if err := a.r.Read(ctx, buf[:], a.vertexOffset(id)); err != nil {
		return table.VertexRecord{}, err
	}
	a.stats.vertex.add(vertexRecordSize)

	rec, err := a.decodeVertex(id, buf[:])
	if err != nil {
		return table.VertexRecord{}, err
	}
	a.cache.Add(rec)
	return rec, nil
}

func (a *Accessor) decodeVertex(id model.VertexID, b []byte) (table.VertexRecord, error) {
	rec, err := table.DecodeVertexRecord(b)
	if err != nil {
		return table.VertexRecord{}, err
	}
	switch rec.ID {
	case id:
		return rec, nil
	case 0:
		return table.VertexRecord{}, fmt.Errorf("%w: vertex %d", model.ErrNotFound, id)
	default:
		return table.VertexRecord{}, fmt.Errorf("%w: slot %d holds vertex %d", model.ErrCorrupt, id, rec.ID)
	}
}

// vertex returns the cached record of id, reading it on a miss.
func (a *Accessor) vertex(ctx context.Context, id model.VertexID) (table.VertexRecord, error) {
	if rec, ok := a.cache.Get(id); ok {
		return rec, nil
	}
	return a.GetVertex(ctx, id)
}

// GetVertexBatch reads the records of ids, BatchSize records per round
// trip. Results are in input order.
func (a *Accessor) GetVertexBatch(ctx context.Context, ids []model.VertexID) ([]table.VertexRecord, error) {
	offsets := make([]uint64, len(ids))
	for i, id := range ids {
		if err := a.checkVertex(id); err != nil {
			return nil, err
		}
		offsets[i] = a.vertexOffset(id)
	}

	recs := make([]table.VertexRecord, len(ids))
	err := a.readVertexSlots(ctx, offsets, func(i int, b []byte) error {
		rec, err := a.decodeVertex(ids[i], b)
		if err != nil {
			return err
		}
		a.cache.Add(rec)
		recs[i] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// readVertexSlots batch-reads the vertex records at offsets and hands each
// to fn with its index.
func (a *Accessor) readVertexSlots(ctx context.Context, offsets []uint64, fn func(i int, b []byte) error) error {
	buf := make([]byte, a.chunk*vertexRecordSize)
	for start := 0; start < len(offsets); start += a.chunk {
		end := min(start+a.chunk, len(offsets))
		if err := a.r.ReadBatch(ctx, buf, vertexRecordSize, offsets, transport.Range{Start: start, End: end}); err != nil {
			return err
		}
		for i := start; i < end; i++ {
			a.stats.vertex.add(vertexRecordSize)
			k := i - start
			if err := fn(i, buf[k*vertexRecordSize:(k+1)*vertexRecordSize]); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetInNeighbors returns all in-neighbors of id.
func (a *Accessor) GetInNeighbors(ctx context.Context, id model.VertexID) ([]model.Neighbor, error) {
	rec, err := a.vertex(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.neighbors(ctx, rec.InlineIn(), rec.InExt, rec.InCount)
}

// GetOutNeighbors returns all out-neighbors of id.
func (a *Accessor) GetOutNeighbors(ctx context.Context, id model.VertexID) ([]model.Neighbor, error) {
	rec, err := a.vertex(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.neighbors(ctx, rec.InlineOut(), rec.OutExt, rec.OutCount)
}

func (a *Accessor) neighbors(ctx context.Context, inline []model.Neighbor, ext arena.Ptr, count uint32) ([]model.Neighbor, error) {
	ns := make([]model.Neighbor, len(inline), len(inline)+int(ext.Size)/table.NeighborSize)
	copy(ns, inline)

	if !ext.IsZero() {
		b, err := a.readVertexExt(ctx, ext)
		if err != nil {
			return nil, err
		}
		more, err := table.DecodeNeighbors(b)
		if err != nil {
			return nil, err
		}
		ns = append(ns, more...)
		a.stats.neighbors.add(int64(len(b)))
	} else {
		a.stats.neighbors.add(0)
	}

	if len(ns) != int(count) {
		return nil, fmt.Errorf("%w: %d neighbors decoded, record says %d", model.ErrCorrupt, len(ns), count)
	}
	return ns, nil
}

func (a *Accessor) readVertexExt(ctx context.Context, ptr arena.Ptr) ([]byte, error) {
	extLen := a.d.EArrayOff - a.d.VExtOff
	if ptr.Off+uint64(ptr.Size) > extLen {
		return nil, fmt.Errorf("%w: vertex extension %s beyond %d bytes", model.ErrCorrupt, ptr, extLen)
	}
	b := make([]byte, ptr.Size)
	if err := a.r.Read(ctx, b, a.d.VExtOff+ptr.Off); err != nil {
		return nil, err
	}
	return b, nil
}

// GetLabelForVertex returns the label of id.
func (a *Accessor) GetLabelForVertex(ctx context.Context, id model.VertexID) (model.Label, error) {
	rec, err := a.vertex(ctx, id)
	if err != nil {
		return 0, err
	}
	return rec.Label, nil
}

// GetLabelForEdge returns the label of the edge src -> dst by scanning the
// out-neighbors of src.
func (a *Accessor) GetLabelForEdge(ctx context.Context, src, dst model.VertexID) (model.Label, bool, error) {
	ns, err := a.GetOutNeighbors(ctx, src)
	if err != nil {
		return 0, false, err
	}
	for _, n := range ns {
		if n.ID == dst {
			return n.Label, true, nil
		}
	}
	return 0, false, nil
}

// GetVertexPropertyKeys returns every property key of id except the label key.
func (a *Accessor) GetVertexPropertyKeys(ctx context.Context, id model.VertexID) ([]model.PropertyKey, error) {
	rec, err := a.vertex(ctx, id)
	if err != nil {
		return nil, err
	}
	keys := append([]model.PropertyKey(nil), rec.InlineProps()...)
	if rec.PropExt.IsZero() {
		return keys, nil
	}
	b, err := a.readVertexExt(ctx, rec.PropExt)
	if err != nil {
		return nil, err
	}
	more, err := table.DecodePropertyKeys(b)
	if err != nil {
		return nil, err
	}
	return append(keys, more...), nil
}

// GetAllVertices reads every record slot and returns the occupied ones in
// id order. Every vertex found is cached.
func (a *Accessor) GetAllVertices(ctx context.Context) ([]table.VertexRecord, error) {
	if a.d.VNum < 2 {
		return nil, nil
	}
	offsets := make([]uint64, a.d.VNum-1)
	for i := range offsets {
		offsets[i] = a.vertexOffset(model.VertexID(i + 1))
	}

	var recs []table.VertexRecord
	err := a.readVertexSlots(ctx, offsets, func(i int, b []byte) error {
		id := model.VertexID(i + 1)
		rec, err := a.decodeVertex(id, b)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		a.cache.Add(rec)
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.logger.DebugContext(ctx, "enumerated vertices", "slots", len(offsets), "vertices", len(recs))
	return recs, nil
}

// GetAllEdges returns the edges leaving every cached vertex, in ascending
// vertex order and out-neighbor order within a vertex.
func (a *Accessor) GetAllEdges(ctx context.Context) ([]model.EdgeID, error) {
	var edges []model.EdgeID
	for _, id := range a.cache.IDs() {
		ns, err := a.GetOutNeighbors(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, n := range ns {
			edges = append(edges, model.NewEdgeID(id, n.ID))
		}
	}
	return edges, nil
}

// CachedVertices returns the ids of cached vertices in ascending order.
func (a *Accessor) CachedVertices() []model.VertexID {
	return a.cache.IDs()
}
