package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/hupe1980/rgraph/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// GraphOptions shapes a random graph.
type GraphOptions struct {
	// Vertices is the number of vertices. Ids are 1..Vertices.
	Vertices int
	// AvgDegree is the mean out-degree.
	AvgDegree int
	// VertexLabels and EdgeLabels bound the label values. Default 4.
	VertexLabels int
	EdgeLabels   int
	// MaxProperties bounds the properties per vertex and per edge.
	// Keys start at 1. Default 0 (no properties).
	MaxProperties int
}

// RandomGraph returns a graph without self loops or duplicate edges.
func (r *RNG) RandomGraph(opts GraphOptions) *model.Graph {
	if opts.VertexLabels <= 0 {
		opts.VertexLabels = 4
	}
	if opts.EdgeLabels <= 0 {
		opts.EdgeLabels = 4
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	g := &model.Graph{Vertices: make([]model.Vertex, 0, opts.Vertices)}
	for i := 1; i <= opts.Vertices; i++ {
		g.Vertices = append(g.Vertices, model.Vertex{
			ID:         model.VertexID(i),
			Label:      model.Label(r.rand.Intn(opts.VertexLabels)),
			Properties: r.properties(opts.MaxProperties),
		})
	}
	if opts.Vertices < 2 {
		return g
	}

	seen := make(map[model.EdgeID]struct{})
	want := opts.Vertices * opts.AvgDegree
	for attempts := 0; len(g.Edges) < want && attempts < want*4; attempts++ {
		src := model.VertexID(r.rand.Intn(opts.Vertices) + 1)
		dst := model.VertexID(r.rand.Intn(opts.Vertices) + 1)
		if src == dst {
			continue
		}
		id := model.NewEdgeID(src, dst)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		g.Edges = append(g.Edges, model.Edge{
			Src:        src,
			Dst:        dst,
			Label:      model.Label(r.rand.Intn(opts.EdgeLabels)),
			Properties: r.properties(opts.MaxProperties),
		})
	}
	return g
}

// properties must be called with r.mu held.
func (r *RNG) properties(maxProps int) []model.Property {
	if maxProps <= 0 {
		return nil
	}
	n := r.rand.Intn(maxProps + 1)
	props := make([]model.Property, 0, n)
	for k := 1; k <= n; k++ {
		var v model.Value
		switch r.rand.Intn(4) {
		case 0:
			v = model.Int(r.rand.Int63())
		case 1:
			v = model.Float(r.rand.Float64())
		case 2:
			v = model.Char(byte('a' + r.rand.Intn(26)))
		default:
			v = model.String(fmt.Sprintf("value-%d", r.rand.Intn(1_000_000)))
		}
		props = append(props, model.Property{Key: model.PropertyKey(k), Value: v})
	}
	return props
}

// StarGraph returns vertex center with out-edges to degree distinct leaves
// and an in-edge from each leaf. Leaves are numbered after center.
func StarGraph(center model.VertexID, degree int) *model.Graph {
	g := &model.Graph{Vertices: []model.Vertex{{ID: center, Label: 1}}}
	for i := 1; i <= degree; i++ {
		leaf := center + model.VertexID(i)
		g.Vertices = append(g.Vertices, model.Vertex{ID: leaf, Label: 2})
		g.Edges = append(g.Edges,
			model.Edge{Src: center, Dst: leaf, Label: model.Label(i)},
			model.Edge{Src: leaf, Dst: center, Label: model.Label(100 + i)},
		)
	}
	return g
}
