package rgraph_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/rgraph"
	"github.com/hupe1980/rgraph/model"
	"github.com/hupe1980/rgraph/transport"
)

// Example loads a small graph into a memory node and reads it back through
// a loopback fabric.
func Example() {
	ctx := context.Background()

	cfg := rgraph.DefaultConfig().Region
	cfg.VertexProperties = 256 << 10
	cfg.EdgeProperties = 256 << 10
	cfg.VertexTable = 64 << 10
	cfg.EdgeTable = 64 << 10

	node, err := rgraph.OpenMemoryNode(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer node.Close()

	_, err = node.Load(ctx, &model.Graph{
		Vertices: []model.Vertex{
			{ID: 1, Label: 10, Properties: []model.Property{{Key: 1, Value: model.String("alice")}}},
			{ID: 2, Label: 10, Properties: []model.Property{{Key: 1, Value: model.String("bob")}}},
		},
		Edges: []model.Edge{{Src: 1, Dst: 2, Label: 5}},
	})
	if err != nil {
		log.Fatal(err)
	}

	g, err := rgraph.Connect(ctx, node.Fabric(), transport.Node{Host: "memnode", Port: 7471}, node.Descriptor())
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	name, _, err := g.VertexProperty(ctx, 1, 1)
	if err != nil {
		log.Fatal(err)
	}
	s, _ := name.AsString()

	out, err := g.OutNeighbors(ctx, 1)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(s, out[0].ID, out[0].Label)
	// Output: alice 2 5
}
