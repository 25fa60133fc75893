// Package rgraph is a disaggregated graph store: a memory node holds the
// whole graph in one flat region and compute nodes navigate it with
// one-sided reads, so the memory node's CPU stays off the read path.
//
// # Memory node
//
// A memory node maps a region, bulk-loads a graph into it once and then
// serves it read-only:
//
//	node, _ := rgraph.OpenMemoryNode(cfg.Region, rgraph.WithWorkers(8))
//	stats, _ := node.Load(ctx, g)
//	_ = node.Publish(ctx, registry, "social")
//	_ = node.Serve(ctx, listener)
//
// The region is laid out as
//
//	[ vertex properties | edge properties | vertex table | edge table ]
//
// Vertex records sit at their id, edge records at their id modulo the
// edge table capacity. Neighbors and property keys beyond the inline
// slots of a record go to the table's extension heap. Properties live in
// two cluster-chaining hash stores, one for vertices and one for edges.
//
// A loaded region can be written to any blobstore with Snapshot and
// brought back with RestoreMemoryNode, skipping the load.
//
// # Compute node
//
// A Graph reads records, neighbors and properties through a pool of
// connections:
//
//	g, _ := rgraph.Connect(ctx, transport.NewTCPFabric(), node, desc, rgraph.WithPoolSize(4))
//	out, _ := g.OutNeighbors(ctx, 42)
//	name, ok, _ := g.VertexProperty(ctx, 42, 1)
//
// A vertex read is one round trip; a property lookup is two (bucket, then
// entry). Vertex records are cached for the lifetime of the Graph.
//
// # Limitations
//
// The edge table does not resolve hash collisions: the later edge
// overwrites the earlier one, which is logged and counted in
// Usage().EdgeCollisions. The region never grows and nothing is deleted.
package rgraph
