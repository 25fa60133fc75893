package transport

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/rgraph/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testBase = 1 << 20

func testRegion(n int) []byte {
	region := make([]byte, n)
	for i := range region {
		region[i] = byte(i * 7)
	}
	return region
}

var testNode = Node{Host: "mem0", Port: 7000}

func connectLoopback(t *testing.T, region []byte, opts ...LoopbackOption) *Connection {
	t.Helper()
	opts = append(opts, WithLoopbackBase(testBase))
	fabric := NewLoopback(region, RemoteRegionID, opts...)
	conn, err := Connect(t.Context(), fabric, testNode, WithRetryInterval(time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestConnect(t *testing.T) {
	t.Run("retries until success", func(t *testing.T) {
		fabric := NewLoopback(testRegion(64), RemoteRegionID, WithDialFailures(3))
		m := &Metrics{}

		conn, err := Connect(t.Context(), fabric, testNode,
			WithRetryInterval(time.Millisecond),
			WithMetrics(m),
		)
		require.NoError(t, err)
		defer conn.Close()

		assert.Equal(t, int64(4), fabric.Dials())
		assert.Equal(t, int64(4), m.Snapshot().ConnectAttempts)
		assert.Equal(t, RegionInfo{RKey: RemoteRegionID, Length: 64}, conn.RemoteRegion())
		assert.Equal(t, testNode, conn.Node())
	})

	t.Run("honours context", func(t *testing.T) {
		fabric := NewLoopback(testRegion(64), RemoteRegionID, WithDialFailures(1<<30))

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()

		_, err := Connect(ctx, fabric, testNode, WithRetryInterval(time.Millisecond))
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Greater(t, fabric.Dials(), int64(1))
	})

	t.Run("default interval", func(t *testing.T) {
		o := defaultOptions()
		assert.Equal(t, 2*time.Millisecond, o.retryInterval)
	})
}

func TestConnection_ReadWrite(t *testing.T) {
	region := testRegion(4096)
	conn := connectLoopback(t, region)
	ctx := t.Context()

	buf := make([]byte, 16)
	require.NoError(t, conn.Read(ctx, buf, 100))
	assert.Equal(t, region[100:116], buf)

	require.NoError(t, conn.Write(ctx, []byte("graph"), 4000))
	require.NoError(t, conn.Read(ctx, buf[:5], 4000))
	assert.Equal(t, "graph", string(buf[:5]))

	require.NoError(t, conn.Read(ctx, buf, 4096-16))

	s := conn.Metrics().Snapshot()
	assert.Equal(t, int64(3), s.Reads)
	assert.Equal(t, int64(1), s.Writes)
	assert.Equal(t, int64(37), s.BytesRead)
	assert.Equal(t, int64(5), s.BytesWritten)
}

func TestConnection_Errors(t *testing.T) {
	ctx := t.Context()

	t.Run("out of bounds", func(t *testing.T) {
		conn := connectLoopback(t, testRegion(128))

		err := conn.Read(ctx, make([]byte, 16), 120)
		require.ErrorIs(t, err, ErrCompletion)
		require.ErrorIs(t, err, ErrOutOfBounds)

		var opErr *OpError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, OpRead, opErr.Op)
		assert.Equal(t, uint64(120), opErr.Offset)
		assert.Equal(t, 16, opErr.Length)
		assert.Equal(t, int64(1), conn.Metrics().Snapshot().Errors)

		// The connection stays usable.
		require.NoError(t, conn.Read(ctx, make([]byte, 8), 0))
	})

	t.Run("injected fault", func(t *testing.T) {
		boom := errors.New("link down")
		conn := connectLoopback(t, testRegion(128), WithFaultInjector(func(op Op, addr uint64, n int) error {
			if op == OpWrite {
				return boom
			}
			return nil
		}))

		require.NoError(t, conn.Read(ctx, make([]byte, 8), 0))
		err := conn.Write(ctx, make([]byte, 8), 0)
		require.ErrorIs(t, err, ErrCompletion)
		require.ErrorIs(t, err, boom)
	})

	t.Run("closed", func(t *testing.T) {
		conn := connectLoopback(t, testRegion(128))
		require.NoError(t, conn.Close())
		require.NoError(t, conn.Close())

		err := conn.Read(ctx, make([]byte, 8), 0)
		require.ErrorIs(t, err, ErrSubmission)
		require.ErrorIs(t, err, ErrClosed)
	})

	t.Run("cancelled before posting", func(t *testing.T) {
		conn := connectLoopback(t, testRegion(128))
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		require.ErrorIs(t, conn.Read(cctx, make([]byte, 8), 0), context.Canceled)
		assert.Zero(t, conn.Metrics().Snapshot().Reads)
	})

	t.Run("bad rkey", func(t *testing.T) {
		fabric := NewLoopback(testRegion(128), RemoteRegionID)
		qp, err := fabric.Dial(ctx, testNode)
		require.NoError(t, err)
		defer qp.Close()

		require.NoError(t, qp.PostRead(ctx, []WorkRequest{{ID: 9, Local: make([]byte, 8), RKey: 1}}))
		c, err := qp.PollCompletion(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(9), c.ID)
		assert.Equal(t, StatusBadRKey, c.Status)
		require.ErrorIs(t, c.Err, ErrBadRKey)
	})
}

func TestConnection_ReadBatch(t *testing.T) {
	region := testRegion(4096)
	conn := connectLoopback(t, region)
	ctx := t.Context()

	offsets := []uint64{0, 96, 960, 2000, 4000}

	t.Run("range", func(t *testing.T) {
		buf := make([]byte, 3*16)
		require.NoError(t, conn.ReadBatch(ctx, buf, 16, offsets, Range{Start: 1, End: 4}))
		for i, off := range offsets[1:4] {
			assert.Equal(t, region[off:off+16], buf[i*16:(i+1)*16], "item %d", i)
		}
	})

	t.Run("matches single reads", func(t *testing.T) {
		batch := make([]byte, len(offsets)*32)
		require.NoError(t, conn.ReadBatch(ctx, batch, 32, offsets, Range{End: len(offsets)}))

		for i, off := range offsets {
			single := make([]byte, 32)
			require.NoError(t, conn.Read(ctx, single, off))
			assert.Equal(t, single, batch[i*32:(i+1)*32])
		}
	})

	t.Run("empty range", func(t *testing.T) {
		require.NoError(t, conn.ReadBatch(ctx, nil, 16, offsets, Range{Start: 2, End: 2}))
	})

	t.Run("invalid arguments", func(t *testing.T) {
		buf := make([]byte, 64)
		require.ErrorIs(t, conn.ReadBatch(ctx, buf, 16, offsets, Range{Start: 3, End: 2}), ErrInvalidArgument)
		require.ErrorIs(t, conn.ReadBatch(ctx, buf, 16, offsets, Range{End: 6}), ErrInvalidArgument)
		require.ErrorIs(t, conn.ReadBatch(ctx, buf, 0, offsets, Range{End: 1}), ErrInvalidArgument)
		require.ErrorIs(t, conn.ReadBatch(ctx, buf[:47], 16, offsets, Range{End: 3}), ErrInvalidArgument)
	})

	t.Run("unsignaled failure surfaces", func(t *testing.T) {
		bad := []uint64{0, 4090, 8}
		err := conn.ReadBatch(ctx, make([]byte, 48), 16, bad, Range{End: 3})
		require.ErrorIs(t, err, ErrCompletion)

		var opErr *OpError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, uint64(4090), opErr.Offset)

		// Nothing of the failed chain leaks into the next operation.
		buf := make([]byte, 16)
		require.NoError(t, conn.Read(ctx, buf, 8))
		assert.Equal(t, region[8:24], buf)
	})
}

func TestPool(t *testing.T) {
	region := testRegion(8192)
	fabric := NewLoopback(region, RemoteRegionID, WithDialFailures(2))

	pool, err := DialPool(t.Context(), fabric, testNode, 4, WithRetryInterval(time.Millisecond))
	require.NoError(t, err)
	defer pool.Close()
	assert.Equal(t, 4, pool.Size())
	assert.Equal(t, uint64(8192), pool.RemoteRegion().Length)

	g, ctx := errgroup.WithContext(t.Context())
	for w := range 8 {
		g.Go(func() error {
			for i := range 50 {
				off := uint64((w*50 + i) % 8000)
				buf := make([]byte, 64)
				if err := pool.Read(ctx, buf, off); err != nil {
					return err
				}
				if buf[0] != region[off] {
					return errors.New("mismatch")
				}
				offsets := []uint64{off, off + 64}
				batch := make([]byte, 128)
				if err := pool.ReadBatch(ctx, batch, 64, offsets, Range{End: 2}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	s := pool.Metrics().Snapshot()
	assert.Equal(t, int64(400), s.Reads)
	assert.Equal(t, int64(400), s.BatchReads)
	assert.Equal(t, int64(800), s.BatchItems)
	assert.Equal(t, int64(6), s.ConnectAttempts)

	require.NoError(t, pool.Close())
	require.ErrorIs(t, pool.Read(t.Context(), make([]byte, 8), 0), ErrClosed)

	t.Run("invalid size", func(t *testing.T) {
		_, err := DialPool(t.Context(), fabric, testNode, 0)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func startServer(t *testing.T, region []byte, opts ...ServerOption) (Node, func() error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(region, RemoteRegionID, opts...)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	var stopped atomic.Bool
	stop := func() error {
		if !stopped.CompareAndSwap(false, true) {
			return nil
		}
		cancel()
		return <-done
	}
	t.Cleanup(func() { _ = stop() })

	return Node{Host: "127.0.0.1", Port: addr.Port}, stop
}

func TestTCP_EquivalentToLoopback(t *testing.T) {
	ctx := t.Context()
	tcpRegion := testRegion(4096)
	loopRegion := testRegion(4096)

	node, stop := startServer(t, tcpRegion, WithServerBase(testBase))

	tcpConn, err := Connect(ctx, NewTCPFabric(WithDialTimeout(time.Second)), node, WithRetryInterval(time.Millisecond))
	require.NoError(t, err)
	defer tcpConn.Close()

	loopConn := connectLoopback(t, loopRegion)

	assert.Equal(t, loopConn.RemoteRegion(), tcpConn.RemoteRegion())

	t.Run("read", func(t *testing.T) {
		for _, off := range []uint64{0, 1, 95, 1000, 4000} {
			a, b := make([]byte, 96), make([]byte, 96)
			require.NoError(t, tcpConn.Read(ctx, a, off))
			require.NoError(t, loopConn.Read(ctx, b, off))
			assert.Equal(t, b, a, "offset %d", off)
		}
	})

	t.Run("batch", func(t *testing.T) {
		offsets := make([]uint64, 40)
		for i := range offsets {
			offsets[i] = uint64(i * 97)
		}
		a, b := make([]byte, 40*24), make([]byte, 40*24)
		require.NoError(t, tcpConn.ReadBatch(ctx, a, 24, offsets, Range{End: 40}))
		require.NoError(t, loopConn.ReadBatch(ctx, b, 24, offsets, Range{End: 40}))
		assert.Equal(t, b, a)
	})

	t.Run("write", func(t *testing.T) {
		require.NoError(t, tcpConn.Write(ctx, []byte("vertex"), 512))
		require.NoError(t, loopConn.Write(ctx, []byte("vertex"), 512))
		assert.Equal(t, loopRegion, tcpRegion)
	})

	t.Run("errors", func(t *testing.T) {
		errTCP := tcpConn.Read(ctx, make([]byte, 16), 4090)
		errLoop := loopConn.Read(ctx, make([]byte, 16), 4090)
		for _, err := range []error{errTCP, errLoop} {
			require.ErrorIs(t, err, ErrCompletion)
			require.ErrorIs(t, err, ErrOutOfBounds)
		}

		errTCP = tcpConn.Write(ctx, make([]byte, 16), 4090)
		require.ErrorIs(t, errTCP, ErrOutOfBounds)

		bad := []uint64{0, 5000, 16}
		errTCP = tcpConn.ReadBatch(ctx, make([]byte, 48), 16, bad, Range{End: 3})
		errLoop = loopConn.ReadBatch(ctx, make([]byte, 48), 16, bad, Range{End: 3})
		require.ErrorIs(t, errTCP, ErrOutOfBounds)
		require.ErrorIs(t, errLoop, ErrOutOfBounds)

		// The stream stays in sync after a failed chain.
		a, b := make([]byte, 16), make([]byte, 16)
		require.NoError(t, tcpConn.Read(ctx, a, 16))
		require.NoError(t, loopConn.Read(ctx, b, 16))
		assert.Equal(t, b, a)
	})

	t.Run("server shutdown", func(t *testing.T) {
		require.NoError(t, stop())
		err := tcpConn.Read(ctx, make([]byte, 16), 0)
		require.Error(t, err)
		var opErr *OpError
		require.ErrorAs(t, err, &opErr)
	})
}

func TestTCP_RateLimited(t *testing.T) {
	region := testRegion(1 << 16)
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})
	node, _ := startServer(t, region, WithIOController(rc))

	pool, err := DialPool(t.Context(), NewTCPFabric(), node, 2, WithRetryInterval(time.Millisecond))
	require.NoError(t, err)
	defer pool.Close()

	buf := make([]byte, 1<<16)
	require.NoError(t, pool.Read(t.Context(), buf, 0))
	assert.Equal(t, region, buf)
}

func TestTCP_ConnectWaitsForListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	node := Node{Host: "127.0.0.1", Port: port}
	region := testRegion(256)

	serveCtx := t.Context()
	go func() {
		time.Sleep(30 * time.Millisecond)
		ln, err := net.Listen("tcp", node.Addr())
		if err != nil {
			return
		}
		_ = NewServer(region, RemoteRegionID).Serve(serveCtx, ln)
	}()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	m := &Metrics{}
	conn, err := Connect(ctx, NewTCPFabric(), node, WithRetryInterval(time.Millisecond), WithMetrics(m))
	require.NoError(t, err)
	defer conn.Close()

	assert.Greater(t, m.Snapshot().ConnectAttempts, int64(1))
	buf := make([]byte, 8)
	require.NoError(t, conn.Read(ctx, buf, 8))
	assert.Equal(t, region[8:16], buf)
}

func TestTCP_LargeBatch(t *testing.T) {
	const (
		items   = 200_000
		itemLen = 96
	)
	region := testRegion(1 << 16)
	node, _ := startServer(t, region)

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	conn, err := Connect(ctx, NewTCPFabric(), node, WithRetryInterval(time.Millisecond))
	require.NoError(t, err)
	defer conn.Close()

	slots := uint64(len(region) / itemLen)
	offsets := make([]uint64, items)
	for i := range offsets {
		offsets[i] = uint64(i) % slots * itemLen
	}
	buf := make([]byte, items*itemLen)
	require.NoError(t, conn.ReadBatch(ctx, buf, itemLen, offsets, Range{End: items}))

	for _, i := range []int{0, 1, items / 2, items - 1} {
		off := offsets[i]
		assert.Equal(t, region[off:off+itemLen], buf[i*itemLen:(i+1)*itemLen], "item %d", i)
	}

	// The connection stays usable.
	small := make([]byte, 16)
	require.NoError(t, conn.Read(ctx, small, 32))
	assert.Equal(t, region[32:48], small)
}

func TestTCP_DeadlineOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	// Answers the handshake, then swallows every request.
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		hs := handshake{magic: tcpMagic, info: RegionInfo{RKey: RemoteRegionID, Length: 4096}}
		if _, err := c.Write(hs.encode()); err != nil {
			return
		}
		buf := make([]byte, 4096)
		for {
			if _, err := c.Read(buf); err != nil {
				return
			}
		}
	}()

	node := Node{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port}
	conn, err := Connect(t.Context(), NewTCPFabric(), node, WithRetryInterval(time.Millisecond))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = conn.Read(ctx, make([]byte, 8), 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	// The abandoned stream cannot be resynchronised.
	err = conn.Read(t.Context(), make([]byte, 8), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmission)
}
