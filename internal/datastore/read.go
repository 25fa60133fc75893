package datastore

import (
	"fmt"

	"github.com/hupe1980/rgraph/internal/arena"
	"github.com/hupe1980/rgraph/internal/table"
	"github.com/hupe1980/rgraph/model"
)

// Local reads. The memory node uses them to verify a load; compute nodes
// go through the accessor instead.

// Vertex returns the record of id or model.ErrNotFound.
func (s *Store) Vertex(id model.VertexID) (table.VertexRecord, error) {
	if !id.Valid() {
		return table.VertexRecord{}, fmt.Errorf("%w: vertex %d", model.ErrInvalidID, id)
	}
	rec, err := s.vt.Find(id)
	if err != nil {
		return table.VertexRecord{}, err
	}
	if rec.IsEmpty() {
		return table.VertexRecord{}, fmt.Errorf("%w: vertex %d", model.ErrNotFound, id)
	}
	return rec, nil
}

// InNeighbors returns all in-neighbors of id.
func (s *Store) InNeighbors(id model.VertexID) ([]model.Neighbor, error) {
	rec, err := s.Vertex(id)
	if err != nil {
		return nil, err
	}
	return s.neighbors(rec.InlineIn(), rec.InExt)
}

// OutNeighbors returns all out-neighbors of id.
func (s *Store) OutNeighbors(id model.VertexID) ([]model.Neighbor, error) {
	rec, err := s.Vertex(id)
	if err != nil {
		return nil, err
	}
	return s.neighbors(rec.InlineOut(), rec.OutExt)
}

func (s *Store) neighbors(inline []model.Neighbor, ext arena.Ptr) ([]model.Neighbor, error) {
	ns := append([]model.Neighbor(nil), inline...)
	if ext.IsZero() {
		return ns, nil
	}
	b, err := s.vt.Extension(ext)
	if err != nil {
		return nil, err
	}
	more, err := table.DecodeNeighbors(b)
	if err != nil {
		return nil, err
	}
	return append(ns, more...), nil
}

// Edge returns the record of id or model.ErrNotFound.
func (s *Store) Edge(id model.EdgeID) (table.EdgeRecord, error) {
	rec, ok, err := s.et.Lookup(id)
	if err != nil {
		return table.EdgeRecord{}, err
	}
	if !ok {
		return table.EdgeRecord{}, fmt.Errorf("%w: edge %s", model.ErrNotFound, id)
	}
	return rec, nil
}

// VertexProperty returns one vertex property.
func (s *Store) VertexProperty(pid model.VertexPropertyID) (model.Value, bool, error) {
	return s.vp.Get(pid.Key())
}

// EdgeProperty returns one edge property.
func (s *Store) EdgeProperty(pid model.EdgePropertyID) (model.Value, bool, error) {
	return s.ep.Get(pid.Key())
}
