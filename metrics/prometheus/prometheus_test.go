package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rgraph"
)

func TestCollector(t *testing.T) {
	c := New("")
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	c.RecordLoad(100, 250, time.Second, nil)
	c.RecordLookup(rgraph.LookupVertex, time.Microsecond, nil)
	c.RecordLookup(rgraph.LookupVertex, time.Microsecond, errors.New("boom"))
	c.RecordBatchLookup(16, time.Millisecond, nil)
	c.RecordSnapshot(4096, time.Second, nil)

	assert.InDelta(t, 100, testutil.ToFloat64(c.loadedVertices), 0)
	assert.InDelta(t, 250, testutil.ToFloat64(c.loadedEdges), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.ops.WithLabelValues(rgraph.LookupVertex, "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.ops.WithLabelValues(rgraph.LookupVertex, "error")), 0)
	assert.InDelta(t, 16, testutil.ToFloat64(c.batchItems), 0)
	assert.InDelta(t, 4096, testutil.ToFloat64(c.snapshotBytes), 0)

	n, err := testutil.GatherAndCount(reg, "rgraph_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCollector_FailedLoadKeepsGauges(t *testing.T) {
	c := New("test")
	c.RecordLoad(10, 10, time.Second, nil)
	c.RecordLoad(99, 99, time.Second, errors.New("capacity"))

	assert.InDelta(t, 10, testutil.ToFloat64(c.loadedVertices), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.ops.WithLabelValues("load", "error")), 0)
}
