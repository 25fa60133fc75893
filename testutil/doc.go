// Package testutil provides testing utilities for rgraph.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded random source and generators for load input.
//
// # Random Graphs
//
//	rng := testutil.NewRNG(seed)
//	g := rng.RandomGraph(testutil.GraphOptions{Vertices: 1000, AvgDegree: 4})
//
// # Fixed Shapes
//
//	g := testutil.StarGraph(1, 7) // vertex 1 with out-degree 7
package testutil
