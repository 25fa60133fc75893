package accessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/rgraph/internal/arena"
	"github.com/hupe1980/rgraph/internal/kvstore"
	"github.com/hupe1980/rgraph/internal/table"
	"github.com/hupe1980/rgraph/model"
)

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}

// GetEdge reads the hashed slot of id. A slot holding another edge, or
// none, yields model.ErrNotFound.
func (a *Accessor) GetEdge(ctx context.Context, id model.EdgeID) (table.EdgeRecord, error) {
	if !id.Src().Valid() || !id.Dst().Valid() {
		return table.EdgeRecord{}, fmt.Errorf("%w: edge %s", model.ErrInvalidID, id)
	}

	var buf [table.EdgeRecordSize]byte
	off := a.d.EArrayOff + table.SlotOf(id, a.d.ENum)*table.EdgeRecordSize
	if err := a.r.Read(ctx, buf[:], off); err != nil {
		return table.EdgeRecord{}, err
	}
	a.stats.edge.add(table.EdgeRecordSize)

	rec, err := table.DecodeEdgeRecord(buf[:])
	if err != nil {
		return table.EdgeRecord{}, err
	}
	if rec.ID != id {
		return table.EdgeRecord{}, fmt.Errorf("%w: edge %s", model.ErrNotFound, id)
	}
	return rec, nil
}

// GetEdgePropertyKeys returns every property key of id except the label key.
func (a *Accessor) GetEdgePropertyKeys(ctx context.Context, id model.EdgeID) ([]model.PropertyKey, error) {
	rec, err := a.GetEdge(ctx, id)
	if err != nil {
		return nil, err
	}
	keys := append([]model.PropertyKey(nil), rec.InlineProps()...)
	if rec.PropExt.IsZero() {
		return keys, nil
	}
	b, err := a.readEdgeExt(ctx, rec.PropExt)
	if err != nil {
		return nil, err
	}
	a.stats.edge.bytes.Add(int64(len(b)))
	more, err := table.DecodePropertyKeys(b)
	if err != nil {
		return nil, err
	}
	return append(keys, more...), nil
}

func (a *Accessor) readEdgeExt(ctx context.Context, ptr arena.Ptr) ([]byte, error) {
	if a.eExtEnd != 0 {
		extLen := a.eExtEnd - a.d.EExtOff
		if ptr.Off+uint64(ptr.Size) > extLen {
			return nil, fmt.Errorf("%w: edge extension %s beyond %d bytes", model.ErrCorrupt, ptr, extLen)
		}
	}
	b := make([]byte, ptr.Size)
	if err := a.r.Read(ctx, b, a.d.EExtOff+ptr.Off); err != nil {
		return nil, err
	}
	return b, nil
}

// GetVertexProperty looks one vertex property up in two round trips.
func (a *Accessor) GetVertexProperty(ctx context.Context, pid model.VertexPropertyID) (model.Value, bool, error) {
	cr := &countingReader{Reader: a.r}
	v, ok, err := kvstore.Lookup(ctx, cr, a.vp, pid.Key())
	a.stats.vertexProperty.add(cr.n)
	return v, ok, err
}

// GetEdgeProperty looks one edge property up in two round trips.
func (a *Accessor) GetEdgeProperty(ctx context.Context, pid model.EdgePropertyID) (model.Value, bool, error) {
	cr := &countingReader{Reader: a.r}
	v, ok, err := kvstore.Lookup(ctx, cr, a.ep, pid.Key())
	a.stats.edgeProperty.add(cr.n)
	return v, ok, err
}
