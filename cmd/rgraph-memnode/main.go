// Command rgraph-memnode loads a graph into a memory node region and
// serves it to compute nodes over TCP.
//
//	rgraph-memnode -config memnode.yaml -graph social.json -store /var/lib/rgraph -name social
//	rgraph-memnode -restore social.img -store s3://bucket/graphs -name social
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/rgraph"
	"github.com/hupe1980/rgraph/internal/cli"
	promcollector "github.com/hupe1980/rgraph/metrics/prometheus"
	"github.com/hupe1980/rgraph/model"
	"github.com/hupe1980/rgraph/resource"
)

type flags struct {
	config      string
	graph       string
	store       string
	registry    string
	name        string
	snapshot    string
	restore     string
	listen      string
	metricsAddr string
	logLevel    string
	logJSON     bool
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "path to YAML config (defaults apply when empty)")
	flag.StringVar(&f.graph, "graph", "", "path to a JSON graph to bulk load")
	flag.StringVar(&f.store, "store", "./rgraph-data", "blob store for snapshots and descriptors")
	flag.StringVar(&f.registry, "registry", "", "descriptor registry (dynamodb://table); defaults to the blob store")
	flag.StringVar(&f.name, "name", "graph", "name to publish the descriptor under")
	flag.StringVar(&f.snapshot, "snapshot", "", "write a snapshot under this name after loading")
	flag.StringVar(&f.restore, "restore", "", "restore the region from this snapshot instead of loading")
	flag.StringVar(&f.listen, "listen", "", "responder address (overrides config)")
	flag.StringVar(&f.metricsAddr, "metrics", "", "address to serve Prometheus metrics on")
	flag.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	flag.BoolVar(&f.logJSON, "log-json", false, "log JSON instead of text")
	flag.Parse()

	level, err := cli.ParseLevel(f.logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := cli.NewLogger(level, f.logJSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f, logger); err != nil {
		stop()
		cli.Fatal(logger, "memory node failed", err)
	}
}

func loadConfig(f flags) (rgraph.Config, error) {
	cfg := rgraph.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = rgraph.LoadConfig(f.config); err != nil {
			return cfg, err
		}
	}
	if f.listen != "" {
		cfg.Listen = f.listen
	}
	return cfg, cfg.Validate()
}

func readGraph(path string) (*model.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g model.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &g, nil
}

func run(ctx context.Context, f flags, logger *rgraph.Logger) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	if (f.graph == "") == (f.restore == "") {
		return errors.New("exactly one of -graph and -restore is required")
	}

	store, err := cli.OpenStore(ctx, f.store)
	if err != nil {
		return err
	}
	registry, err := cli.OpenRegistry(ctx, f.registry, store)
	if err != nil {
		return err
	}

	collector := promcollector.New("rgraph")
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collector)
		srv := &http.Server{
			Addr:              f.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	opts := []rgraph.Option{
		rgraph.WithLogger(logger),
		rgraph.WithMetricsCollector(collector),
		rgraph.WithResourceController(resource.NewController(cfg.ResourceConfig())),
		rgraph.WithSnapshotCompression(cfg.SnapshotCompression()),
	}
	if cfg.Workers > 0 {
		opts = append(opts, rgraph.WithWorkers(cfg.Workers))
	}

	var node *rgraph.MemoryNode
	if f.restore != "" {
		if node, err = rgraph.RestoreMemoryNode(ctx, store, f.restore, opts...); err != nil {
			return err
		}
	} else {
		if node, err = load(ctx, cfg, f.graph, opts); err != nil {
			return err
		}
	}
	defer node.Close()

	u := node.Usage()
	logger.Info("region ready",
		"size", u.Region.String(),
		"vertices", u.Vertices.Records,
		"edges", u.Edges.Records,
		"edge_collisions", u.EdgeCollisions,
		"vertex_property_keys", u.VertexProperties.Keys,
		"edge_property_keys", u.EdgeProperties.Keys,
	)

	if f.snapshot != "" {
		if _, err := node.Snapshot(ctx, store, f.snapshot); err != nil {
			return err
		}
	}
	if err := node.Publish(ctx, registry, f.name); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	return node.Serve(ctx, ln)
}

func load(ctx context.Context, cfg rgraph.Config, path string, opts []rgraph.Option) (*rgraph.MemoryNode, error) {
	g, err := readGraph(path)
	if err != nil {
		return nil, err
	}
	node, err := rgraph.OpenMemoryNode(cfg.Region, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := node.Load(ctx, g); err != nil {
		_ = node.Close()
		return nil, err
	}
	return node, nil
}
