package table

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/rgraph/internal/arena"
	"github.com/hupe1980/rgraph/model"
)

func newRegion(t *testing.T, size int) *arena.Region {
	t.Helper()
	root := arena.NewRegion(make([]byte, size+64))
	r, err := root.Sub(64, uint64(size))
	require.NoError(t, err)
	return r
}

func TestComputeGeometry(t *testing.T) {
	t.Run("vertex", func(t *testing.T) {
		g, err := ComputeGeometry(1000, VertexRecordSize, DefaultVertexExtRatio)
		require.NoError(t, err)
		assert.Equal(t, uint64(8), g.NumRecords)
		assert.Equal(t, uint64(768), g.ArrayBytes)
		assert.Equal(t, uint64(232), g.ExtBytes)
	})

	t.Run("no extension", func(t *testing.T) {
		g, err := ComputeGeometry(240, EdgeRecordSize, 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), g.NumRecords)
		assert.Equal(t, uint64(0), g.ExtBytes)
	})

	t.Run("too small", func(t *testing.T) {
		_, err := ComputeGeometry(50, VertexRecordSize, 20)
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})

	t.Run("bad ratio", func(t *testing.T) {
		_, err := ComputeGeometry(1000, VertexRecordSize, 100)
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})
}

func TestVertexRecord_RoundTrip(t *testing.T) {
	ext, err := arena.NewPtr(40, 16)
	require.NoError(t, err)

	rec := VertexRecord{
		ID:       7,
		Label:    3,
		In:       [InlineIn]model.Neighbor{{ID: 1, Label: 9}, {ID: 2, Label: 8}, {ID: 3, Label: 7}},
		InExt:    ext,
		Out:      [InlineOut]model.Neighbor{{ID: 4, Label: 1}},
		Props:    [InlineProps]model.PropertyKey{0, 5, 0},
		PropExt:  arena.Ptr{},
		InCount:  8,
		OutCount: 1,
	}

	b := make([]byte, VertexRecordSize)
	rec.MarshalTo(b)

	got, err := DecodeVertexRecord(b)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Len(t, got.InlineIn(), 3)
	assert.Equal(t, []model.Neighbor{{ID: 4, Label: 1}}, got.InlineOut())

	_, err = DecodeVertexRecord(b[:10])
	assert.ErrorIs(t, err, model.ErrCorrupt)
}

func TestEdgeRecord_RoundTrip(t *testing.T) {
	rec := EdgeRecord{
		ID:    model.NewEdgeID(3, 4),
		Props: [InlineEdgeProps]model.PropertyKey{6},
	}
	b := make([]byte, EdgeRecordSize)
	rec.MarshalTo(b)

	got, err := DecodeEdgeRecord(b)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, []model.PropertyKey{6}, got.InlineProps())
}

func TestBlockCodecs(t *testing.T) {
	ns := []model.Neighbor{{ID: 1, Label: 2}, {ID: 3, Label: 4}}
	got, err := DecodeNeighbors(EncodeNeighbors(ns))
	require.NoError(t, err)
	assert.Equal(t, ns, got)

	_, err = DecodeNeighbors(make([]byte, 7))
	assert.ErrorIs(t, err, model.ErrCorrupt)

	keys := []model.PropertyKey{0, 1, 4095}
	gotKeys, err := DecodePropertyKeys(EncodePropertyKeys(keys))
	require.NoError(t, err)
	assert.Equal(t, keys, gotKeys)
}

func TestVertexTable(t *testing.T) {
	t.Run("insert and find", func(t *testing.T) {
		vt, err := NewVertexTable(newRegion(t, 1000))
		require.NoError(t, err)
		assert.Equal(t, uint64(64), vt.ArrayOffset())
		assert.Equal(t, uint64(64+768), vt.ExtOffset())

		require.NoError(t, vt.Insert(VertexRecord{ID: 5, Label: 2}))

		rec, err := vt.Find(5)
		require.NoError(t, err)
		assert.Equal(t, model.Label(2), rec.Label)

		empty, err := vt.Find(6)
		require.NoError(t, err)
		assert.True(t, empty.IsEmpty())

		assert.Equal(t, uint64(1), vt.Usage().Records)
	})

	t.Run("capacity bound", func(t *testing.T) {
		vt, err := NewVertexTable(newRegion(t, 1000))
		require.NoError(t, err)

		require.NoError(t, vt.Insert(VertexRecord{ID: 7}))

		err = vt.Insert(VertexRecord{ID: 8})
		require.ErrorIs(t, err, model.ErrCapacity)
		var ce *CapacityError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, uint64(8), ce.Capacity)

		_, err = vt.Find(8)
		assert.ErrorIs(t, err, model.ErrInvalidID)
	})

	t.Run("zero id", func(t *testing.T) {
		vt, err := NewVertexTable(newRegion(t, 1000))
		require.NoError(t, err)
		assert.ErrorIs(t, vt.Insert(VertexRecord{}), model.ErrInvalidID)
	})

	t.Run("duplicate", func(t *testing.T) {
		vt, err := NewVertexTable(newRegion(t, 1000))
		require.NoError(t, err)
		require.NoError(t, vt.Insert(VertexRecord{ID: 1}))
		assert.ErrorIs(t, vt.Insert(VertexRecord{ID: 1}), model.ErrDuplicateKey)
	})
}

func TestExtension(t *testing.T) {
	t.Run("write and read back", func(t *testing.T) {
		vt, err := NewVertexTable(newRegion(t, 1000))
		require.NoError(t, err)

		data := EncodeNeighbors([]model.Neighbor{{ID: 1, Label: 1}, {ID: 2, Label: 2}})
		p1, err := vt.WriteExtension(data)
		require.NoError(t, err)
		p2, err := vt.WriteExtension(data)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), p1.Off)
		assert.Equal(t, uint64(16), p2.Off)

		got, err := vt.Extension(p2)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("empty data yields zero ptr", func(t *testing.T) {
		vt, err := NewVertexTable(newRegion(t, 1000))
		require.NoError(t, err)
		p, err := vt.WriteExtension(nil)
		require.NoError(t, err)
		assert.True(t, p.IsZero())
	})

	t.Run("capacity bound", func(t *testing.T) {
		vt, err := NewVertexTable(newRegion(t, 1000))
		require.NoError(t, err)

		_, err = vt.AllocateExtension(232)
		require.NoError(t, err)

		_, err = vt.AllocateExtension(1)
		require.ErrorIs(t, err, model.ErrCapacity)
		var ce *CapacityError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, uint64(233), ce.Requested)
		assert.Equal(t, uint64(232), ce.Capacity)
	})

	t.Run("out of range ptr", func(t *testing.T) {
		vt, err := NewVertexTable(newRegion(t, 1000))
		require.NoError(t, err)
		_, err = vt.Extension(arena.Ptr{Size: 8, Off: 230})
		assert.ErrorIs(t, err, model.ErrCorrupt)
	})
}

func TestEdgeTable(t *testing.T) {
	t.Run("insert and lookup", func(t *testing.T) {
		et, err := NewEdgeTable(newRegion(t, 1000))
		require.NoError(t, err)

		id := model.NewEdgeID(1, 2)
		collided, err := et.Insert(EdgeRecord{ID: id, Props: [1]model.PropertyKey{3}})
		require.NoError(t, err)
		assert.False(t, collided)

		rec, ok, err := et.Lookup(id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.PropertyKey(3), rec.Props[0])

		_, ok, err = et.Lookup(model.NewEdgeID(2, 1))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("duplicate", func(t *testing.T) {
		et, err := NewEdgeTable(newRegion(t, 1000))
		require.NoError(t, err)
		id := model.NewEdgeID(1, 2)
		_, err = et.Insert(EdgeRecord{ID: id})
		require.NoError(t, err)
		_, err = et.Insert(EdgeRecord{ID: id})
		assert.ErrorIs(t, err, model.ErrDuplicateKey)
	})

	t.Run("collision is detected and logged", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		et, err := NewEdgeTable(newRegion(t, 240), WithExtRatio(0), WithLogger(logger))
		require.NoError(t, err)
		require.Equal(t, uint64(10), et.NumRecords())

		first := model.NewEdgeID(1, 1)
		second := model.NewEdgeID(1, 11)
		require.Equal(t, SlotOf(first, 10), SlotOf(second, 10))

		_, err = et.Insert(EdgeRecord{ID: first})
		require.NoError(t, err)
		collided, err := et.Insert(EdgeRecord{ID: second})
		require.NoError(t, err)
		assert.True(t, collided)

		assert.Equal(t, uint64(1), et.Collisions())
		assert.Equal(t, uint64(1), et.Usage().Records)
		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), "edge table collision")

		_, ok, err := et.Lookup(first)
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, err = et.Lookup(second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("state restore", func(t *testing.T) {
		region := newRegion(t, 1000)
		et, err := NewEdgeTable(region)
		require.NoError(t, err)
		_, err = et.Insert(EdgeRecord{ID: model.NewEdgeID(1, 2)})
		require.NoError(t, err)
		_, err = et.WriteExtension([]byte{1, 2})
		require.NoError(t, err)

		again, err := NewEdgeTable(region)
		require.NoError(t, err)
		again.Restore(et.State())
		assert.Equal(t, et.Usage(), again.Usage())
	})
}

func TestEdgeTable_ConcurrentCollisions(t *testing.T) {
	const edges = 64

	// Every (1, 1+10k) lands in slot 7 of a 10-record table.
	ids := make([]model.EdgeID, edges)
	for k := range ids {
		ids[k] = model.NewEdgeID(1, model.VertexID(1+10*k))
	}

	for _, workers := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			et, err := NewEdgeTable(newRegion(t, 240), WithExtRatio(0))
			require.NoError(t, err)
			require.Equal(t, SlotOf(ids[0], 10), SlotOf(ids[edges-1], 10))

			var (
				g        errgroup.Group
				collided atomic.Uint64
			)
			for w := range workers {
				g.Go(func() error {
					for i := w; i < edges; i += workers {
						c, err := et.Insert(EdgeRecord{ID: ids[i], Props: [1]model.PropertyKey{model.PropertyKey(i + 1)}})
						if err != nil {
							return err
						}
						if c {
							collided.Add(1)
						}
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			u := et.Usage()
			assert.Equal(t, uint64(1), u.Records)
			assert.Equal(t, uint64(edges-1), u.Collisions)
			assert.Equal(t, uint64(edges), u.Records+u.Collisions)
			assert.Equal(t, uint64(edges-1), collided.Load())

			found := 0
			for i, id := range ids {
				rec, ok, err := et.Lookup(id)
				require.NoError(t, err)
				if ok {
					found++
					assert.Equal(t, model.PropertyKey(i+1), rec.Props[0], "record of %s is torn", id)
				}
			}
			assert.Equal(t, 1, found)
		})
	}
}
