// Package accessor is the compute-node view of a memory node's region.
//
// An Accessor turns graph operations into one-sided reads against the
// layout in a descriptor:
//
//   - a vertex record is one read at VArrayOff + id*96;
//   - neighbors beyond the inline ones are one more read in the vertex
//     extension heap;
//   - a property is a bucket read plus an entry read in a property store;
//   - batches read up to BatchSize records per round trip.
//
// Vertex records are cached on first read. The region is frozen while it
// is served, so the cache is never invalidated.
package accessor
