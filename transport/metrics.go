package transport

import "sync/atomic"

// Metrics counts transport activity. It is safe for concurrent use and may
// be shared by all connections of a pool.
type Metrics struct {
	reads           atomic.Int64
	batchReads      atomic.Int64
	batchItems      atomic.Int64
	writes          atomic.Int64
	bytesRead       atomic.Int64
	bytesWritten    atomic.Int64
	errors          atomic.Int64
	connectAttempts atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Reads           int64
	BatchReads      int64
	BatchItems      int64
	Writes          int64
	BytesRead       int64
	BytesWritten    int64
	Errors          int64
	ConnectAttempts int64
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Reads:           m.reads.Load(),
		BatchReads:      m.batchReads.Load(),
		BatchItems:      m.batchItems.Load(),
		Writes:          m.writes.Load(),
		BytesRead:       m.bytesRead.Load(),
		BytesWritten:    m.bytesWritten.Load(),
		Errors:          m.errors.Load(),
		ConnectAttempts: m.connectAttempts.Load(),
	}
}
