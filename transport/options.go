package transport

import (
	"io"
	"log/slog"
	"time"
)

// DefaultRetryInterval is the pause between connection attempts.
const DefaultRetryInterval = 2 * time.Millisecond

// Option configures Connect and DialPool.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	retryInterval time.Duration
	metrics       *Metrics
}

func defaultOptions() options {
	return options{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		retryInterval: DefaultRetryInterval,
	}
}

// WithLogger sets the logger. Failed connection attempts are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRetryInterval sets the pause between connection attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryInterval = d
		}
	}
}

// WithMetrics records activity into m. By default every connection has
// its own counters.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
