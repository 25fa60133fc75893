package rgraph

import (
	"sync/atomic"
	"time"
)

// Lookup kinds passed to MetricsCollector.RecordLookup.
const (
	LookupVertex         = "vertex"
	LookupNeighbors      = "neighbors"
	LookupLabel          = "label"
	LookupVertexProperty = "vertex_property"
	LookupEdgeProperty   = "edge_property"
	LookupEdge           = "edge"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus;
// see the metrics/prometheus package for a ready-made one.
type MetricsCollector interface {
	// RecordLoad is called after a bulk load with the number of vertices and
	// edges in the input graph.
	RecordLoad(vertices, edges int, duration time.Duration, err error)

	// RecordLookup is called after each single remote lookup. kind is one
	// of the Lookup constants.
	RecordLookup(kind string, duration time.Duration, err error)

	// RecordBatchLookup is called after each batched vertex read of n ids.
	RecordBatchLookup(n int, duration time.Duration, err error)

	// RecordSnapshot is called after a snapshot write or restore with the
	// image size in bytes.
	RecordSnapshot(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(int, int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordLookup(string, time.Duration, error)   {}
func (NoopMetricsCollector) RecordBatchLookup(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSnapshot(int64, time.Duration, error)  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount          atomic.Int64
	LoadErrors         atomic.Int64
	LoadedVertices     atomic.Int64
	LoadedEdges        atomic.Int64
	LookupCount        atomic.Int64
	LookupErrors       atomic.Int64
	LookupTotalNanos   atomic.Int64
	BatchLookupCount   atomic.Int64
	BatchLookupItems   atomic.Int64
	BatchLookupErrors  atomic.Int64
	SnapshotCount      atomic.Int64
	SnapshotErrors     atomic.Int64
	SnapshotBytes      atomic.Int64
	SnapshotTotalNanos atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(vertices, edges int, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadedVertices.Add(int64(vertices))
	b.LoadedEdges.Add(int64(edges))
}

// RecordLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLookup(kind string, duration time.Duration, err error) {
	b.LookupCount.Add(1)
	b.LookupTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LookupErrors.Add(1)
	}
}

// RecordBatchLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchLookup(n int, duration time.Duration, err error) {
	b.BatchLookupCount.Add(1)
	b.BatchLookupItems.Add(int64(n))
	if err != nil {
		b.BatchLookupErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(bytes int64, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	b.SnapshotTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SnapshotErrors.Add(1)
		return
	}
	b.SnapshotBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:         b.LoadCount.Load(),
		LoadErrors:        b.LoadErrors.Load(),
		LoadedVertices:    b.LoadedVertices.Load(),
		LoadedEdges:       b.LoadedEdges.Load(),
		LookupCount:       b.LookupCount.Load(),
		LookupErrors:      b.LookupErrors.Load(),
		LookupAvgNanos:    b.getAvgLookupNanos(),
		BatchLookupCount:  b.BatchLookupCount.Load(),
		BatchLookupItems:  b.BatchLookupItems.Load(),
		BatchLookupErrors: b.BatchLookupErrors.Load(),
		SnapshotCount:     b.SnapshotCount.Load(),
		SnapshotErrors:    b.SnapshotErrors.Load(),
		SnapshotBytes:     b.SnapshotBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgLookupNanos() int64 {
	count := b.LookupCount.Load()
	if count == 0 {
		return 0
	}
	return b.LookupTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount         int64
	LoadErrors        int64
	LoadedVertices    int64
	LoadedEdges       int64
	LookupCount       int64
	LookupErrors      int64
	LookupAvgNanos    int64
	BatchLookupCount  int64
	BatchLookupItems  int64
	BatchLookupErrors int64
	SnapshotCount     int64
	SnapshotErrors    int64
	SnapshotBytes     int64
}
