package rgraph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rgraph/blobstore"
	"github.com/hupe1980/rgraph/layout"
	"github.com/hupe1980/rgraph/model"
	"github.com/hupe1980/rgraph/testutil"
	"github.com/hupe1980/rgraph/transport"
)

var testNode = transport.Node{Host: "memnode", Port: 7471}

func testRegion() RegionConfig {
	cfg := DefaultConfig().Region
	cfg.VertexProperties = 256 << 10
	cfg.EdgeProperties = 256 << 10
	cfg.VertexTable = 64 << 10
	cfg.EdgeTable = 64 << 10
	return cfg
}

// smallGraph has four edges in four distinct edge table slots.
func smallGraph() *model.Graph {
	return &model.Graph{
		Vertices: []model.Vertex{
			{ID: 1, Label: 10, Properties: []model.Property{
				{Key: 1, Value: model.String("alice")},
				{Key: 2, Value: model.Int(42)},
			}},
			{ID: 2, Label: 10, Properties: []model.Property{{Key: 1, Value: model.String("bob")}}},
			{ID: 3, Label: 20},
			{ID: 4, Label: 20},
		},
		Edges: []model.Edge{
			{Src: 1, Dst: 2, Label: 5, Properties: []model.Property{{Key: 1, Value: model.Float(0.5)}}},
			{Src: 2, Dst: 3, Label: 6},
			{Src: 3, Dst: 1, Label: 7},
			{Src: 1, Dst: 3, Label: 8, Properties: []model.Property{{Key: 3, Value: model.Char('x')}}},
		},
	}
}

func loadedNode(t *testing.T, g *model.Graph, opts ...Option) *MemoryNode {
	t.Helper()
	n, err := OpenMemoryNode(testRegion(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	_, err = n.Load(t.Context(), g)
	require.NoError(t, err)
	return n
}

func connect(t *testing.T, n *MemoryNode, opts ...Option) *Graph {
	t.Helper()
	g, err := Connect(t.Context(), n.Fabric(), testNode, n.Descriptor(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

type adjacency map[model.VertexID][]model.Neighbor

func expected(g *model.Graph) (in, out adjacency) {
	in, out = adjacency{}, adjacency{}
	for _, e := range g.Edges {
		out[e.Src] = append(out[e.Src], model.Neighbor{ID: e.Dst, Label: e.Label})
		in[e.Dst] = append(in[e.Dst], model.Neighbor{ID: e.Src, Label: e.Label})
	}
	return in, out
}

// verify reads every vertex, neighbor list and property of want through g.
func verify(t *testing.T, g *Graph, want *model.Graph) {
	t.Helper()
	ctx := t.Context()
	in, out := expected(want)

	for _, v := range want.Vertices {
		info, err := g.Vertex(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.ID, info.ID)
		assert.Equal(t, v.Label, info.Label)
		assert.Equal(t, len(in[v.ID]), info.InDegree)
		assert.Equal(t, len(out[v.ID]), info.OutDegree)

		gotIn, err := g.InNeighbors(ctx, v.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, in[v.ID], gotIn, "in-neighbors of %d", v.ID)
		gotOut, err := g.OutNeighbors(ctx, v.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, out[v.ID], gotOut, "out-neighbors of %d", v.ID)

		for _, p := range v.Properties {
			val, ok, err := g.VertexProperty(ctx, v.ID, p.Key)
			require.NoError(t, err)
			require.True(t, ok, "vertex %d key %d", v.ID, p.Key)
			assert.Equal(t, p.Value, val)
		}
	}

	for _, e := range want.Edges {
		for _, p := range e.Properties {
			val, ok, err := g.EdgeProperty(ctx, e.Src, e.Dst, p.Key)
			require.NoError(t, err)
			require.True(t, ok, "edge %d->%d key %d", e.Src, e.Dst, p.Key)
			assert.Equal(t, p.Value, val)
		}
	}
}

func TestMemoryNode_LoadAndQuery(t *testing.T) {
	rng := testutil.NewRNG(7)
	want := rng.RandomGraph(testutil.GraphOptions{Vertices: 120, AvgDegree: 3, MaxProperties: 4})

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			metrics := &BasicMetricsCollector{}
			n := loadedNode(t, want, WithWorkers(workers), WithMetricsCollector(metrics))
			assert.True(t, n.Loaded())

			g := connect(t, n, WithMetricsCollector(metrics), WithPoolSize(2))
			verify(t, g, want)

			stats := metrics.GetStats()
			assert.Equal(t, int64(1), stats.LoadCount)
			assert.Equal(t, int64(len(want.Vertices)), stats.LoadedVertices)
			assert.Equal(t, int64(len(want.Edges)), stats.LoadedEdges)
			assert.Positive(t, stats.LookupCount)
			assert.Zero(t, stats.LookupErrors)
		})
	}
}

func TestMemoryNode_Usage(t *testing.T) {
	n := loadedNode(t, smallGraph())

	u := n.Usage()
	assert.Equal(t, Size(testRegion().Total()), u.Region)
	assert.Equal(t, uint64(4), u.Vertices.Records)
	assert.Equal(t, uint64(4), u.Edges.Records)
	assert.Zero(t, u.EdgeCollisions)
	// Labels are stored as properties under key 0.
	assert.Equal(t, uint64(4+3), u.VertexProperties.Keys)
	assert.Equal(t, uint64(4+2), u.EdgeProperties.Keys)
}

func TestMemoryNode_LoadErrors(t *testing.T) {
	t.Run("twice", func(t *testing.T) {
		n := loadedNode(t, smallGraph())
		_, err := n.Load(t.Context(), smallGraph())
		require.ErrorIs(t, err, ErrFrozen)
	})

	t.Run("capacity", func(t *testing.T) {
		n, err := OpenMemoryNode(testRegion())
		require.NoError(t, err)
		defer n.Close()

		// 64 KiB at 80% holds 546 vertex records.
		_, err = n.Load(t.Context(), testutil.StarGraph(1, 600))
		require.ErrorIs(t, err, ErrCapacity)
		var ce *TableCapacityError
		require.ErrorAs(t, err, &ce)
		assert.False(t, n.Loaded())

		require.ErrorIs(t, n.Publish(t.Context(), layout.NewBlobRegistry(blobstore.NewMemoryStore()), "g"), ErrNotLoaded)
	})

	t.Run("duplicate", func(t *testing.T) {
		n, err := OpenMemoryNode(testRegion())
		require.NoError(t, err)
		defer n.Close()

		g := smallGraph()
		g.Edges = append(g.Edges, g.Edges[0])
		_, err = n.Load(t.Context(), g)
		require.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("nil graph", func(t *testing.T) {
		n, err := OpenMemoryNode(testRegion())
		require.NoError(t, err)
		defer n.Close()
		_, err = n.Load(t.Context(), nil)
		require.Error(t, err)
	})
}

func TestOpenMemoryNode_InvalidGeometry(t *testing.T) {
	cfg := testRegion()
	cfg.EdgeTable = 10

	_, err := OpenMemoryNode(cfg)
	var ge *ErrInvalidGeometry
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "table", ge.Region)
}

func TestMemoryNode_NotLoaded(t *testing.T) {
	n, err := OpenMemoryNode(testRegion())
	require.NoError(t, err)
	defer n.Close()

	_, err = n.Snapshot(t.Context(), blobstore.NewMemoryStore(), "img")
	require.ErrorIs(t, err, ErrNotLoaded)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	require.ErrorIs(t, n.Serve(t.Context(), ln), ErrNotLoaded)
}

func TestMemoryNode_SnapshotRestore(t *testing.T) {
	rng := testutil.NewRNG(11)
	want := rng.RandomGraph(testutil.GraphOptions{Vertices: 80, AvgDegree: 4, MaxProperties: 3})

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			metrics := &BasicMetricsCollector{}
			store := blobstore.NewMemoryStore()
			n := loadedNode(t, want, WithSnapshotCompression(c), WithMetricsCollector(metrics))

			size, err := n.Snapshot(t.Context(), store, "graph.img")
			require.NoError(t, err)
			assert.Positive(t, size)
			if c != CompressionNone {
				assert.Less(t, size, int64(testRegion().Total()))
			}

			restored, err := RestoreMemoryNode(t.Context(), store, "graph.img", WithMetricsCollector(metrics))
			require.NoError(t, err)
			t.Cleanup(func() { _ = restored.Close() })

			assert.True(t, restored.Loaded())
			assert.Equal(t, n.Descriptor(), restored.Descriptor())
			assert.Equal(t, n.Config(), restored.Config())
			assert.Equal(t, n.Usage(), restored.Usage())
			assert.True(t, bytes.Equal(n.store.Bytes(), restored.store.Bytes()))

			_, err = restored.Load(t.Context(), want)
			require.ErrorIs(t, err, ErrFrozen)

			verify(t, connect(t, restored), want)

			stats := metrics.GetStats()
			assert.Equal(t, int64(2), stats.SnapshotCount)
			assert.Zero(t, stats.SnapshotErrors)
		})
	}
}

func TestRestoreMemoryNode_Errors(t *testing.T) {
	store := blobstore.NewMemoryStore()

	t.Run("missing", func(t *testing.T) {
		_, err := RestoreMemoryNode(t.Context(), store, "absent")
		require.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("corrupt", func(t *testing.T) {
		n := loadedNode(t, smallGraph(), WithSnapshotCompression(CompressionNone))
		_, err := n.Snapshot(t.Context(), store, "img")
		require.NoError(t, err)

		img, err := blobstore.ReadAll(t.Context(), store, "img")
		require.NoError(t, err)
		img = bytes.Clone(img)
		img[len(img)/2] ^= 0xff
		require.NoError(t, store.Put(t.Context(), "bad", img))

		_, err = RestoreMemoryNode(t.Context(), store, "bad")
		require.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestMemoryNode_Publish(t *testing.T) {
	n := loadedNode(t, smallGraph())
	reg := layout.NewBlobRegistry(blobstore.NewMemoryStore())

	require.NoError(t, n.Publish(t.Context(), reg, "social"))
	require.ErrorIs(t, n.Publish(t.Context(), reg, "social"), ErrAlreadyPublished)

	g, err := ConnectRegistry(t.Context(), reg, "social", n.Fabric(), testNode)
	require.NoError(t, err)
	defer g.Close()
	assert.Equal(t, n.Descriptor(), g.Descriptor())

	_, err = ConnectRegistry(t.Context(), reg, "other", n.Fabric(), testNode)
	require.ErrorIs(t, err, ErrNotPublished)
}

func TestMemoryNode_ServeTCP(t *testing.T) {
	want := smallGraph()
	n := loadedNode(t, want)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	node := transport.Node{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- n.Serve(ctx, ln) }()

	g, err := Connect(t.Context(), transport.NewTCPFabric(), node, n.Descriptor(), WithPoolSize(2))
	require.NoError(t, err)
	verify(t, g, want)
	require.NoError(t, g.Close())

	cancel()
	err = <-done
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("serve: %v", err)
	}
}
