// Package datastore owns the registered region of a memory node.
//
// A Store maps one anonymous region, lays the vertex-property store, the
// edge-property store, the vertex table and the edge table over it in that
// order, bulk-loads a graph with parallel workers and then freezes. After
// the load the region is only read, by local verification and by remote
// one-sided reads through a fabric.
//
// A Manifest captures the region split and allocator counters so that an
// image of the region can be restored into a fresh Store.
package datastore
