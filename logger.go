package rgraph

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hupe1980/rgraph/model"
	"github.com/hupe1980/rgraph/transport"
)

// Logger wraps slog.Logger with rgraph-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithVertex adds a vertex field to the logger.
func (l *Logger) WithVertex(id model.VertexID) *Logger {
	return &Logger{
		Logger: l.Logger.With("vertex", id),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// WithNode adds the memory node address to the logger.
func (l *Logger) WithNode(node transport.Node) *Logger {
	return &Logger{
		Logger: l.Logger.With("node", node.String()),
	}
}

// LogLoad logs a bulk load.
func (l *Logger) LogLoad(ctx context.Context, vertices, edges int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "bulk load failed",
			"vertices", vertices,
			"edges", edges,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "bulk load completed",
			"vertices", vertices,
			"edges", edges,
			"duration", d,
		)
	}
}

// LogLookup logs a single remote read of the given kind.
func (l *Logger) LogLookup(ctx context.Context, kind string, key uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "lookup failed",
			"kind", kind,
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "lookup completed",
			"kind", kind,
			"key", key,
		)
	}
}

// LogSnapshot logs a snapshot write or restore.
func (l *Logger) LogSnapshot(ctx context.Context, name string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"name", name,
			"size", humanize.IBytes(uint64(bytes)),
		)
	}
}

// LogPublish logs a descriptor publication.
func (l *Logger) LogPublish(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "descriptor publish failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "descriptor published",
			"name", name,
		)
	}
}

// LogConnect logs the outcome of connecting to a memory node.
func (l *Logger) LogConnect(ctx context.Context, node transport.Node, connections int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "connect failed",
			"node", node.String(),
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "connected",
			"node", node.String(),
			"connections", connections,
		)
	}
}
