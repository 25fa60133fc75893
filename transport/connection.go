package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Connection is one queue pair bound to a remote region. Operations on a
// connection are serialized; use a Pool for parallelism.
type Connection struct {
	mu     sync.Mutex
	qp     QueuePair
	node   Node
	region RegionInfo
	nextID uint64
	closed atomic.Bool

	metrics *Metrics
	logger  *slog.Logger
}

// Connect dials node and binds the remote region to the connection.
//
// A failed dial is retried every retry interval until it succeeds or ctx
// is done; the memory node may not be listening yet.
func Connect(ctx context.Context, fabric Fabric, node Node, opts ...Option) (*Connection, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = &Metrics{}
	}

	timer := time.NewTimer(o.retryInterval)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		o.metrics.connectAttempts.Add(1)

		qp, err := fabric.Dial(ctx, node)
		if err == nil {
			region := qp.RemoteRegion()
			o.logger.DebugContext(ctx, "connected",
				"node", node.String(),
				"attempts", attempt,
				"region_bytes", region.Length,
			)
			return &Connection{
				qp:      qp,
				node:    node,
				region:  region,
				nextID:  1,
				metrics: o.metrics,
				logger:  o.logger,
			}, nil
		}

		o.logger.DebugContext(ctx, "connect failed, retrying",
			"node", node.String(),
			"attempt", attempt,
			"error", err,
		)

		timer.Reset(o.retryInterval)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transport: connect %s: %w", node, ctx.Err())
		case <-timer.C:
		}
	}
}

// Node returns the memory node this connection is attached to.
func (c *Connection) Node() Node {
	return c.node
}

// RemoteRegion returns the bound region.
func (c *Connection) RemoteRegion() RegionInfo {
	return c.region
}

// Metrics returns the connection's counters.
func (c *Connection) Metrics() *Metrics {
	return c.metrics
}

// Read fills buf with len(buf) bytes at off within the remote region.
// It blocks until the read completes and never retries.
func (c *Connection) Read(ctx context.Context, buf []byte, off uint64) error {
	if err := c.single(ctx, OpRead, buf, off); err != nil {
		return err
	}
	c.metrics.reads.Add(1)
	c.metrics.bytesRead.Add(int64(len(buf)))
	return nil
}

// Write copies buf to off within the remote region.
func (c *Connection) Write(ctx context.Context, buf []byte, off uint64) error {
	if err := c.single(ctx, OpWrite, buf, off); err != nil {
		return err
	}
	c.metrics.writes.Add(1)
	c.metrics.bytesWritten.Add(int64(len(buf)))
	return nil
}

func (c *Connection) single(ctx context.Context, op Op, buf []byte, off uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		c.metrics.errors.Add(1)
		return submissionError(op, off, len(buf), ErrClosed)
	}

	id := c.nextID
	c.nextID++
	wr := WorkRequest{
		ID:         id,
		Local:      buf,
		RemoteAddr: c.region.Base + off,
		RKey:       c.region.RKey,
		Signaled:   true,
	}

	var err error
	if op == OpRead {
		err = c.qp.PostRead(ctx, []WorkRequest{wr})
	} else {
		err = c.qp.PostWrite(ctx, wr)
	}
	if err != nil {
		c.metrics.errors.Add(1)
		return submissionError(op, off, len(buf), err)
	}

	comp, err := c.wait(ctx, id, id)
	if err != nil {
		c.metrics.errors.Add(1)
		return c.waitError(op, off, len(buf), err)
	}
	if comp.Status != StatusOK {
		c.metrics.errors.Add(1)
		return completionError(op, off, len(buf), comp)
	}
	return nil
}

// ReadBatch reads offsets[r.Start:r.End] as one chain of work requests.
// Item i of the range lands at buf[i*itemLen:(i+1)*itemLen]. Only the last
// request is signaled.
func (c *Connection) ReadBatch(ctx context.Context, buf []byte, itemLen int, offsets []uint64, r Range) error {
	if itemLen <= 0 || r.Start < 0 || r.Start > r.End || r.End > len(offsets) {
		return fmt.Errorf("%w: item length %d, range [%d, %d) of %d offsets",
			ErrInvalidArgument, itemLen, r.Start, r.End, len(offsets))
	}
	n := r.Len()
	if len(buf) < n*itemLen {
		return fmt.Errorf("%w: buffer of %d bytes for %d items of %d bytes",
			ErrInvalidArgument, len(buf), n, itemLen)
	}
	if n == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		c.metrics.errors.Add(1)
		return submissionError(OpRead, offsets[r.Start], n*itemLen, ErrClosed)
	}

	first := c.nextID
	c.nextID += uint64(n)

	chain := make([]WorkRequest, n)
	for i := range chain {
		chain[i] = WorkRequest{
			ID:         first + uint64(i),
			Local:      buf[i*itemLen : (i+1)*itemLen],
			RemoteAddr: c.region.Base + offsets[r.Start+i],
			RKey:       c.region.RKey,
			Signaled:   i == n-1,
		}
	}

	if err := c.qp.PostRead(ctx, chain); err != nil {
		c.metrics.errors.Add(1)
		return submissionError(OpRead, offsets[r.Start], n*itemLen, err)
	}

	last := first + uint64(n-1)
	comp, err := c.wait(ctx, first, last)
	if err != nil {
		c.metrics.errors.Add(1)
		return c.waitError(OpRead, offsets[r.Start], n*itemLen, err)
	}
	if comp.Status != StatusOK {
		c.metrics.errors.Add(1)
		i := int(comp.ID - first)
		return completionError(OpRead, offsets[r.Start+i], itemLen, comp)
	}

	c.metrics.batchReads.Add(1)
	c.metrics.batchItems.Add(int64(n))
	c.metrics.bytesRead.Add(int64(n * itemLen))
	return nil
}

// wait polls until the completion of request last, or the first error
// completion in [first, last]. Completions of earlier, abandoned requests
// are discarded.
func (c *Connection) wait(ctx context.Context, first, last uint64) (Completion, error) {
	for {
		comp, err := c.qp.PollCompletion(ctx)
		if err != nil {
			return comp, err
		}
		if comp.ID < first || comp.ID > last {
			continue
		}
		if comp.Status != StatusOK || comp.ID == last {
			return comp, nil
		}
	}
}

func (c *Connection) waitError(op Op, off uint64, n int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("transport: %s at offset %d: %w", op, off, err)
	}
	return completionError(op, off, n, Completion{Status: StatusFailed, Err: err})
}

// Close releases the queue pair. An operation waiting for its completion
// fails, and further operations fail with ErrClosed.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.qp.Close()
}

var _ Reader = (*Connection)(nil)
