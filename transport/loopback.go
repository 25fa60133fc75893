package transport

import (
	"context"
	"fmt"
	"sync/atomic"
)

// FaultInjector is consulted before every loopback work request. A non-nil
// result fails the request with StatusFailed.
type FaultInjector func(op Op, addr uint64, n int) error

// LoopbackOption configures a Loopback fabric.
type LoopbackOption func(*Loopback)

// WithDialFailures makes the first n dials fail.
func WithDialFailures(n int) LoopbackOption {
	return func(l *Loopback) {
		l.dialFailures.Store(int64(n))
	}
}

// WithFaultInjector installs fn on every queue pair of the fabric.
func WithFaultInjector(fn FaultInjector) LoopbackOption {
	return func(l *Loopback) {
		l.fault = fn
	}
}

// WithLoopbackBase sets the remote address of the region's first byte.
func WithLoopbackBase(base uint64) LoopbackOption {
	return func(l *Loopback) {
		l.info.Base = base
	}
}

// Loopback is an in-process fabric. Work requests copy directly to and
// from the registered region.
type Loopback struct {
	region       []byte
	info         RegionInfo
	fault        FaultInjector
	dialFailures atomic.Int64
	dials        atomic.Int64
}

// NewLoopback registers region under rkey.
func NewLoopback(region []byte, rkey uint32, opts ...LoopbackOption) *Loopback {
	l := &Loopback{
		region: region,
		info: RegionInfo{
			RKey:   rkey,
			Length: uint64(len(region)),
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dials returns the number of Dial calls so far, failed ones included.
func (l *Loopback) Dials() int64 {
	return l.dials.Load()
}

// Dial implements Fabric.
func (l *Loopback) Dial(ctx context.Context, node Node) (QueuePair, error) {
	l.dials.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.dialFailures.Add(-1) >= 0 {
		return nil, fmt.Errorf("loopback: dial %s: connection refused", node)
	}
	return &loopbackQP{fabric: l, cq: newCompletionQueue()}, nil
}

type loopbackQP struct {
	fabric *Loopback
	cq     *completionQueue
	closed atomic.Bool
}

func (q *loopbackQP) RemoteRegion() RegionInfo {
	return q.fabric.info
}

func (q *loopbackQP) execute(op Op, wr WorkRequest) (Status, error) {
	info := q.fabric.info
	if wr.RKey != info.RKey {
		return StatusBadRKey, ErrBadRKey
	}
	n := uint64(len(wr.Local))
	if !info.Contains(wr.RemoteAddr, n) {
		return StatusOutOfBounds, fmt.Errorf("%w: [%d, %d)", ErrOutOfBounds, wr.RemoteAddr, wr.RemoteAddr+n)
	}
	if q.fabric.fault != nil {
		if err := q.fabric.fault(op, wr.RemoteAddr, len(wr.Local)); err != nil {
			return StatusFailed, err
		}
	}

	off := wr.RemoteAddr - info.Base
	remote := q.fabric.region[off : off+n]
	if op == OpRead {
		copy(wr.Local, remote)
	} else {
		copy(remote, wr.Local)
	}
	return StatusOK, nil
}

func (q *loopbackQP) post(op Op, chain []WorkRequest) error {
	if q.closed.Load() {
		return ErrClosed
	}
	for _, wr := range chain {
		status, err := q.execute(op, wr)
		if status != StatusOK {
			q.cq.push(Completion{ID: wr.ID, Status: status, Err: err})
			return nil
		}
		if wr.Signaled {
			q.cq.push(Completion{ID: wr.ID, Status: StatusOK})
		}
	}
	return nil
}

func (q *loopbackQP) PostRead(_ context.Context, chain []WorkRequest) error {
	return q.post(OpRead, chain)
}

func (q *loopbackQP) PostWrite(_ context.Context, wr WorkRequest) error {
	return q.post(OpWrite, []WorkRequest{wr})
}

func (q *loopbackQP) PollCompletion(ctx context.Context) (Completion, error) {
	return q.cq.poll(ctx)
}

func (q *loopbackQP) Close() error {
	if q.closed.CompareAndSwap(false, true) {
		q.cq.close()
	}
	return nil
}
