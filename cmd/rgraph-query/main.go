// Command rgraph-query fetches a published descriptor, connects to the
// memory node and prints a vertex with its neighbors and properties. Labels
// and keys are followed by their names when the graph was published with
// name tables.
//
//	rgraph-query -store /var/lib/rgraph -name social -addr memnode:7471 -vertex 42
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hupe1980/rgraph"
	"github.com/hupe1980/rgraph/internal/cli"
	"github.com/hupe1980/rgraph/model"
	"github.com/hupe1980/rgraph/transport"
)

func main() {
	var (
		store    = flag.String("store", "./rgraph-data", "blob store holding the descriptor")
		registry = flag.String("registry", "", "descriptor registry (dynamodb://table); defaults to the blob store")
		name     = flag.String("name", "graph", "published descriptor name")
		addr     = flag.String("addr", "127.0.0.1:7471", "memory node responder address")
		vertex   = flag.Uint("vertex", 1, "vertex to print")
		timeout  = flag.Duration("timeout", 30*time.Second, "give up connecting after this long")
		logLevel = flag.String("log-level", "warn", "debug, info, warn or error")
	)
	flag.Parse()

	level, err := cli.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := cli.NewLogger(level, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, os.Stdout, logger, *store, *registry, *name, *addr, model.VertexID(*vertex)); err != nil {
		cancel()
		cli.Fatal(logger, "query failed", err)
	}
}

func parseNode(addr string) (transport.Node, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return transport.Node{}, err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return transport.Node{}, fmt.Errorf("port %q: %w", port, err)
	}
	return transport.Node{Host: host, Port: p}, nil
}

func run(ctx context.Context, w io.Writer, logger *rgraph.Logger, storeLoc, registryLoc, name, addr string, id model.VertexID) error {
	node, err := parseNode(addr)
	if err != nil {
		return err
	}
	store, err := cli.OpenStore(ctx, storeLoc)
	if err != nil {
		return err
	}
	reg, err := cli.OpenRegistry(ctx, registryLoc, store)
	if err != nil {
		return err
	}

	g, err := rgraph.ConnectRegistry(ctx, reg, name, transport.NewTCPFabric(), node, rgraph.WithLogger(logger))
	if err != nil {
		return err
	}
	defer g.Close()

	return printVertex(ctx, w, g, id)
}

// named formats id followed by its quoted name when it has one.
func named[T ~uint16 | ~uint32](id T, name string, ok bool) string {
	if !ok {
		return strconv.FormatUint(uint64(id), 10)
	}
	return fmt.Sprintf("%d %q", id, name)
}

func printVertex(ctx context.Context, w io.Writer, g *rgraph.Graph, id model.VertexID) error {
	v, err := g.Vertex(ctx, id)
	if err != nil {
		return err
	}
	label, ok := g.LabelName(v.Label)
	fmt.Fprintf(w, "vertex %d label %s (in %d, out %d)\n", v.ID, named(v.Label, label, ok), v.InDegree, v.OutDegree)

	keys, err := g.VertexPropertyKeys(ctx, id)
	if err != nil {
		return err
	}
	for _, k := range keys {
		val, ok, err := g.VertexProperty(ctx, id, k)
		if err != nil {
			return err
		}
		if ok {
			name, hasName := g.PropertyKeyName(k)
			fmt.Fprintf(w, "  property %s = %s\n", named(k, name, hasName), val)
		}
	}

	in, err := g.InNeighbors(ctx, id)
	if err != nil {
		return err
	}
	for _, n := range in {
		name, ok := g.EdgeLabelName(n.Label)
		fmt.Fprintf(w, "  in  <- %d [label %s]\n", n.ID, named(n.Label, name, ok))
	}
	out, err := g.OutNeighbors(ctx, id)
	if err != nil {
		return err
	}
	for _, n := range out {
		name, ok := g.EdgeLabelName(n.Label)
		fmt.Fprintf(w, "  out -> %d [label %s]\n", n.ID, named(n.Label, name, ok))
	}

	s := g.AccessStats()
	fmt.Fprintf(w, "reads: vertex %d (%d B), neighbors %d (%d B), properties %d (%d B)\n",
		s.Vertex.Count, s.Vertex.Bytes,
		s.Neighbors.Count, s.Neighbors.Bytes,
		s.VertexProperty.Count, s.VertexProperty.Bytes,
	)
	return nil
}
