// Package prometheus exports rgraph operation metrics through
// github.com/prometheus/client_golang.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/rgraph"
)

var _ rgraph.MetricsCollector = (*Collector)(nil)

// Collector implements rgraph.MetricsCollector. Register it with a
// prometheus.Registerer; it is itself a prometheus.Collector.
type Collector struct {
	ops            *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	loadedVertices prometheus.Gauge
	loadedEdges    prometheus.Gauge
	batchItems     prometheus.Counter
	snapshotBytes  prometheus.Gauge
}

// New creates a collector whose metric names start with namespace
// (default "rgraph").
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = "rgraph"
	}
	return &Collector{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operations by kind and status",
		}, []string{"op", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of operations",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"op"}),
		loadedVertices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loaded_vertices",
			Help:      "Vertices in the last successful bulk load",
		}),
		loadedEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loaded_edges",
			Help:      "Edges in the last successful bulk load",
		}),
		batchItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_lookup_items_total",
			Help:      "Vertex ids requested through batched reads",
		}),
		snapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_size_bytes",
			Help:      "Size of the last snapshot image written or restored",
		}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	c.ops.WithLabelValues(op, status(err)).Inc()
	c.latency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordLoad implements rgraph.MetricsCollector.
func (c *Collector) RecordLoad(vertices, edges int, d time.Duration, err error) {
	c.observe("load", d, err)
	if err == nil {
		c.loadedVertices.Set(float64(vertices))
		c.loadedEdges.Set(float64(edges))
	}
}

// RecordLookup implements rgraph.MetricsCollector.
func (c *Collector) RecordLookup(kind string, d time.Duration, err error) {
	c.observe(kind, d, err)
}

// RecordBatchLookup implements rgraph.MetricsCollector.
func (c *Collector) RecordBatchLookup(n int, d time.Duration, err error) {
	c.observe("batch", d, err)
	c.batchItems.Add(float64(n))
}

// RecordSnapshot implements rgraph.MetricsCollector.
func (c *Collector) RecordSnapshot(bytes int64, d time.Duration, err error) {
	c.observe("snapshot", d, err)
	if err == nil {
		c.snapshotBytes.Set(float64(bytes))
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.ops.Describe(ch)
	c.latency.Describe(ch)
	c.loadedVertices.Describe(ch)
	c.loadedEdges.Describe(ch)
	c.batchItems.Describe(ch)
	c.snapshotBytes.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.ops.Collect(ch)
	c.latency.Collect(ch)
	c.loadedVertices.Collect(ch)
	c.loadedEdges.Collect(ch)
	c.batchItems.Collect(ch)
	c.snapshotBytes.Collect(ch)
}
