package transport

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pool is a fixed set of connections to one memory node, one per compute
// worker. Each call borrows a connection for its duration.
type Pool struct {
	node    Node
	region  RegionInfo
	idle    chan *Connection
	all     []*Connection
	metrics *Metrics
	closed  atomic.Bool
}

// DialPool opens size connections in parallel. All connections share one
// Metrics. If any connection cannot be established before ctx is done, the
// others are closed and the error is returned.
func DialPool(ctx context.Context, fabric Fabric, node Node, size int, opts ...Option) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: pool size %d", ErrInvalidArgument, size)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	m := o.metrics
	if m == nil {
		m = &Metrics{}
	}
	opts = append(opts[:len(opts):len(opts)], WithMetrics(m))

	conns := make([]*Connection, size)
	g, gctx := errgroup.WithContext(ctx)
	for i := range conns {
		g.Go(func() error {
			c, err := Connect(gctx, fabric, node, opts...)
			if err != nil {
				return err
			}
			conns[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, c := range conns {
			if c != nil {
				_ = c.Close()
			}
		}
		return nil, err
	}

	p := &Pool{
		node:    node,
		region:  conns[0].RemoteRegion(),
		idle:    make(chan *Connection, size),
		all:     conns,
		metrics: m,
	}
	for _, c := range conns {
		p.idle <- c
	}
	return p, nil
}

// Size returns the number of connections.
func (p *Pool) Size() int {
	return len(p.all)
}

// Node returns the memory node the pool is attached to.
func (p *Pool) Node() Node {
	return p.node
}

// RemoteRegion returns the bound region.
func (p *Pool) RemoteRegion() RegionInfo {
	return p.region
}

// Metrics returns the counters shared by all connections.
func (p *Pool) Metrics() *Metrics {
	return p.metrics
}

func (p *Pool) acquire(ctx context.Context) (*Connection, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	select {
	case c := <-p.idle:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(c *Connection) {
	p.idle <- c
}

// Read implements Reader on a borrowed connection.
func (p *Pool) Read(ctx context.Context, buf []byte, off uint64) error {
	c, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer p.release(c)
	return c.Read(ctx, buf, off)
}

// ReadBatch implements Reader on a borrowed connection.
func (p *Pool) ReadBatch(ctx context.Context, buf []byte, itemLen int, offsets []uint64, r Range) error {
	c, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer p.release(c)
	return c.ReadBatch(ctx, buf, itemLen, offsets, r)
}

// Write writes buf at off on a borrowed connection.
func (p *Pool) Write(ctx context.Context, buf []byte, off uint64) error {
	c, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer p.release(c)
	return c.Write(ctx, buf, off)
}

// Close closes every connection.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	for _, c := range p.all {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Reader = (*Pool)(nil)
