package rgraph

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/hupe1980/rgraph/internal/snapshot"
	"github.com/hupe1980/rgraph/model"
	"github.com/hupe1980/rgraph/resource"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	workers          int
	bufferSize       int
	poolSize         int
	rc               *resource.Controller
	retryInterval    time.Duration
	compression      snapshot.Compression
	names            model.Names
}

// Option configures a MemoryNode or a Graph. Options that only concern one
// side are ignored by the other.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := rgraph.NewJSONLogger(slog.LevelInfo)
//	node, _ := rgraph.OpenMemoryNode(cfg, rgraph.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &rgraph.BasicMetricsCollector{}
//	g, _ := rgraph.Connect(ctx, fabric, node, desc, rgraph.WithMetricsCollector(metrics))
//	// ... use g ...
//	stats := metrics.GetStats()
//	fmt.Printf("Lookups: %d, Avg latency: %dns\n", stats.LookupCount, stats.LookupAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithWorkers sets the number of bulk-load workers (memory node).
// Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithBufferSize sets the accessor read buffer in bytes (graph). It bounds
// how many vertex records one batched read carries. Defaults to 4096.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// WithPoolSize sets the number of connections a graph opens, one per
// concurrent worker. Defaults to 1.
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// WithResourceController shares a resource controller: the region memory
// budget, load worker slots and the snapshot and responder IO rate.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithRetryInterval sets the backoff between connect attempts. Defaults to 2ms.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryInterval = d
		}
	}
}

// WithSnapshotCompression selects the block codec of snapshots written by a
// memory node. Defaults to zstd.
func WithSnapshotCompression(c snapshot.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithNames gives a graph the name tables of its region (graph). Connect
// fails if they are inconsistent. ConnectRegistry fetches them itself.
func WithNames(names model.Names) Option {
	return func(o *options) {
		o.names = names
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		workers:          runtime.GOMAXPROCS(0),
		bufferSize:       4096,
		poolSize:         1,
		retryInterval:    2 * time.Millisecond,
		compression:      snapshot.CompressionZSTD,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
