package accessor

import (
	"context"
	"sync/atomic"

	"github.com/hupe1980/rgraph/transport"
)

// Counter counts operations and the remote bytes they read.
type Counter struct {
	Count int64
	Bytes int64
}

// AccessStats breaks remote reads down by what they fetched.
type AccessStats struct {
	Vertex         Counter
	Neighbors      Counter
	VertexProperty Counter
	EdgeProperty   Counter
	Edge           Counter
}

type counter struct {
	count atomic.Int64
	bytes atomic.Int64
}

func (c *counter) add(bytes int64) {
	c.count.Add(1)
	c.bytes.Add(bytes)
}

func (c *counter) load() Counter {
	return Counter{Count: c.count.Load(), Bytes: c.bytes.Load()}
}

type accessCounters struct {
	vertex         counter
	neighbors      counter
	vertexProperty counter
	edgeProperty   counter
	edge           counter
}

// AccessStats returns a snapshot of the access counters.
func (a *Accessor) AccessStats() AccessStats {
	return AccessStats{
		Vertex:         a.stats.vertex.load(),
		Neighbors:      a.stats.neighbors.load(),
		VertexProperty: a.stats.vertexProperty.load(),
		EdgeProperty:   a.stats.edgeProperty.load(),
		Edge:           a.stats.edge.load(),
	}
}

// countingReader counts the bytes read through it by one operation.
type countingReader struct {
	transport.Reader
	n int64
}

func (c *countingReader) Read(ctx context.Context, buf []byte, off uint64) error {
	c.n += int64(len(buf))
	return c.Reader.Read(ctx, buf, off)
}
