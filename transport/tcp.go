package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/rgraph/resource"
)

// Wire format of the TCP fabric. All integers are little-endian.
//
//	handshake (server to client): [magic u32][rkey u32][base u64][length u64]
//	request:  [op u8][signaled u8][pad u16][rkey u32][addr u64][len u32] + payload for writes
//	response: [status u8][pad u8 x3][len u32] + data for successful reads
const (
	tcpMagic           = 0x46524752 // "RGRF"
	handshakeSize      = 24
	requestHeaderSize  = 20
	responseHeaderSize = 8
)

type handshake struct {
	magic uint32
	info  RegionInfo
}

func (h handshake) encode() []byte {
	b := make([]byte, handshakeSize)
	binary.LittleEndian.PutUint32(b[0:], h.magic)
	binary.LittleEndian.PutUint32(b[4:], h.info.RKey)
	binary.LittleEndian.PutUint64(b[8:], h.info.Base)
	binary.LittleEndian.PutUint64(b[16:], h.info.Length)
	return b
}

func decodeHandshake(b []byte) (handshake, error) {
	h := handshake{
		magic: binary.LittleEndian.Uint32(b[0:]),
		info: RegionInfo{
			RKey:   binary.LittleEndian.Uint32(b[4:]),
			Base:   binary.LittleEndian.Uint64(b[8:]),
			Length: binary.LittleEndian.Uint64(b[16:]),
		},
	}
	if h.magic != tcpMagic {
		return h, fmt.Errorf("transport: bad handshake magic %08x", h.magic)
	}
	return h, nil
}

type requestHeader struct {
	op       Op
	signaled bool
	rkey     uint32
	addr     uint64
	length   uint32
}

func (h requestHeader) encodeTo(b *[requestHeaderSize]byte) {
	*b = [requestHeaderSize]byte{}
	b[0] = byte(h.op)
	if h.signaled {
		b[1] = 1
	}
	binary.LittleEndian.PutUint32(b[4:], h.rkey)
	binary.LittleEndian.PutUint64(b[8:], h.addr)
	binary.LittleEndian.PutUint32(b[16:], h.length)
}

func decodeRequestHeader(b *[requestHeaderSize]byte) requestHeader {
	return requestHeader{
		op:       Op(b[0]),
		signaled: b[1] != 0,
		rkey:     binary.LittleEndian.Uint32(b[4:]),
		addr:     binary.LittleEndian.Uint64(b[8:]),
		length:   binary.LittleEndian.Uint32(b[16:]),
	}
}

func writeResponseHeader(w io.Writer, status Status, n uint32) error {
	var b [responseHeaderSize]byte
	b[0] = byte(status)
	binary.LittleEndian.PutUint32(b[4:], n)
	_, err := w.Write(b[:])
	return err
}

func readResponseHeader(r io.Reader) (Status, uint32, error) {
	var b [responseHeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, 0, err
	}
	return Status(b[0]), binary.LittleEndian.Uint32(b[4:]), nil
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIOController charges every served byte against rc's IO budget.
func WithIOController(rc *resource.Controller) ServerOption {
	return func(s *Server) {
		s.rc = rc
	}
}

// WithServerBase sets the remote address of the region's first byte.
func WithServerBase(base uint64) ServerOption {
	return func(s *Server) {
		s.info.Base = base
	}
}

// Server is the memory-node side of the TCP fabric. It executes one-sided
// requests against the region and knows nothing about what the region holds.
type Server struct {
	region []byte
	info   RegionInfo
	logger *slog.Logger
	rc     *resource.Controller
}

// NewServer registers region under rkey.
func NewServer(region []byte, rkey uint32, opts ...ServerOption) *Server {
	s := &Server{
		region: region,
		info: RegionInfo{
			RKey:   rkey,
			Length: uint64(len(region)),
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegionInfo returns what clients receive in the handshake.
func (s *Server) RegionInfo() RegionInfo {
	return s.info
}

// Serve accepts connections on ln until ctx is done. It closes ln and all
// accepted connections before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.logger.InfoContext(ctx, "serving region",
		"addr", ln.Addr().String(),
		"bytes", s.info.Length,
		"rkey", s.info.RKey,
	)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("transport: accept: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	log := s.logger.With("remote", conn.RemoteAddr().String())
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	if _, err := w.Write(handshake{magic: tcpMagic, info: s.info}.encode()); err != nil {
		log.DebugContext(ctx, "handshake failed", "error", err)
		return
	}
	if err := w.Flush(); err != nil {
		log.DebugContext(ctx, "handshake failed", "error", err)
		return
	}

	var hdr [requestHeaderSize]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.DebugContext(ctx, "connection closed", "error", err)
			}
			return
		}
		if err := s.execute(ctx, r, w, decodeRequestHeader(&hdr)); err != nil {
			if ctx.Err() == nil {
				log.WarnContext(ctx, "request failed", "error", err)
			}
			return
		}
		// Flush once the pipelined requests of a chain are drained.
		if r.Buffered() == 0 {
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}

func (s *Server) check(req requestHeader) Status {
	if req.rkey != s.info.RKey {
		return StatusBadRKey
	}
	if !s.info.Contains(req.addr, uint64(req.length)) {
		return StatusOutOfBounds
	}
	return StatusOK
}

func (s *Server) execute(ctx context.Context, r *bufio.Reader, w *bufio.Writer, req requestHeader) error {
	status := s.check(req)

	switch req.op {
	case OpRead:
		if status != StatusOK {
			return writeResponseHeader(w, status, 0)
		}
		if err := s.rc.AcquireIO(ctx, int(req.length)); err != nil {
			return err
		}
		off := req.addr - s.info.Base
		if err := writeResponseHeader(w, StatusOK, req.length); err != nil {
			return err
		}
		_, err := w.Write(s.region[off : off+uint64(req.length)])
		return err

	case OpWrite:
		if status != StatusOK {
			if _, err := io.CopyN(io.Discard, r, int64(req.length)); err != nil {
				return err
			}
			return writeResponseHeader(w, status, 0)
		}
		if err := s.rc.AcquireIO(ctx, int(req.length)); err != nil {
			return err
		}
		off := req.addr - s.info.Base
		if _, err := io.ReadFull(r, s.region[off:off+uint64(req.length)]); err != nil {
			return err
		}
		return writeResponseHeader(w, StatusOK, 0)

	default:
		return fmt.Errorf("transport: unknown op %d", req.op)
	}
}

// TCPOption configures a TCPFabric.
type TCPOption func(*TCPFabric)

// WithDialTimeout bounds each TCP dial. The handshake is bounded by the dial context.
func WithDialTimeout(d time.Duration) TCPOption {
	return func(f *TCPFabric) {
		f.dialer.Timeout = d
	}
}

// TCPFabric is the compute-node side of the TCP fabric.
type TCPFabric struct {
	dialer net.Dialer
}

// NewTCPFabric returns a client fabric.
func NewTCPFabric(opts ...TCPOption) *TCPFabric {
	f := &TCPFabric{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Dial implements Fabric.
func (f *TCPFabric) Dial(ctx context.Context, node Node) (QueuePair, error) {
	conn, err := f.dialer.DialContext(ctx, "tcp", node.Addr())
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	r := bufio.NewReader(conn)
	b := make([]byte, handshakeSize)
	if _, err := io.ReadFull(r, b); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("transport: handshake with %s: %w", node, err)
	}
	h, err := decodeHandshake(b)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})

	return &tcpQP{
		conn: conn,
		r:    r,
		w:    bufio.NewWriter(conn),
		info: h.info,
		cq:   newCompletionQueue(),
	}, nil
}

type tcpQP struct {
	mu     sync.Mutex
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	info   RegionInfo
	cq     *completionQueue
	broken atomic.Pointer[error]
	closed atomic.Bool
}

func (q *tcpQP) RemoteRegion() RegionInfo {
	return q.info
}

func (q *tcpQP) PostRead(ctx context.Context, chain []WorkRequest) error {
	return q.post(ctx, OpRead, chain)
}

func (q *tcpQP) PostWrite(ctx context.Context, wr WorkRequest) error {
	return q.post(ctx, OpWrite, []WorkRequest{wr})
}

// post streams the chain from a writer goroutine while reading the
// responses, and returns once every response has been turned into a
// completion. ctx bounds the socket I/O; its expiry breaks the connection.
func (q *tcpQP) post(ctx context.Context, op Op, chain []WorkRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed.Load() {
		return ErrClosed
	}
	if err := q.brokenErr(); err != nil {
		return err
	}

	defer q.watch(ctx)()

	werr := make(chan error, 1)
	go func() {
		err := q.writeChain(op, chain)
		if err != nil {
			q.fail(err)
		}
		werr <- err
	}()

	q.readResponses(ctx, op, chain)

	if err := <-werr; err != nil {
		return contextCause(ctx, err)
	}
	return nil
}

// contextCause reports ctx's error for socket errors caused by watch.
// Socket deadlines are only ever set from ctx, so a timeout means ctx is
// about to expire.
func contextCause(ctx context.Context, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		<-ctx.Done()
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}

// watch applies ctx's deadline and cancellation to the socket until the
// returned func is called.
func (q *tcpQP) watch(ctx context.Context) func() {
	if deadline, ok := ctx.Deadline(); ok {
		_ = q.conn.SetDeadline(deadline)
	}
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = q.conn.SetDeadline(time.Now())
		close(fired)
	})
	return func() {
		if !stop() {
			<-fired
		}
		_ = q.conn.SetDeadline(time.Time{})
	}
}

func (q *tcpQP) writeChain(op Op, chain []WorkRequest) error {
	var hdr [requestHeaderSize]byte
	for _, wr := range chain {
		requestHeader{
			op:       op,
			signaled: wr.Signaled,
			rkey:     wr.RKey,
			addr:     wr.RemoteAddr,
			length:   uint32(len(wr.Local)),
		}.encodeTo(&hdr)

		if _, err := q.w.Write(hdr[:]); err != nil {
			return err
		}
		if op == OpWrite {
			if _, err := q.w.Write(wr.Local); err != nil {
				return err
			}
		}
	}
	return q.w.Flush()
}

// readResponses consumes one response per request. After a failed request
// the rest of the chain is read but completes silently. A broken stream
// fails the current request and ends the chain.
func (q *tcpQP) readResponses(ctx context.Context, op Op, chain []WorkRequest) {
	failed := false
	for _, wr := range chain {
		status, n, err := readResponseHeader(q.r)
		if err == nil && op == OpRead && status == StatusOK {
			if int(n) != len(wr.Local) {
				err = fmt.Errorf("transport: response of %d bytes for a %d-byte read", n, len(wr.Local))
			} else {
				_, err = io.ReadFull(q.r, wr.Local)
			}
		}
		if err != nil {
			err = contextCause(ctx, err)
			q.fail(err)
			if !failed {
				q.cq.push(Completion{ID: wr.ID, Status: StatusFailed, Err: err})
			}
			return
		}

		switch {
		case failed:
		case status != StatusOK:
			failed = true
			q.cq.push(Completion{ID: wr.ID, Status: status, Err: statusErr(status)})
		case wr.Signaled:
			q.cq.push(Completion{ID: wr.ID, Status: StatusOK})
		}
	}
}

// fail marks the connection broken and closes the socket, which unblocks
// the other half of a post in progress.
func (q *tcpQP) fail(err error) {
	broken := fmt.Errorf("transport: connection broken: %w", err)
	if q.broken.CompareAndSwap(nil, &broken) {
		_ = q.conn.Close()
	}
}

func (q *tcpQP) brokenErr() error {
	if p := q.broken.Load(); p != nil {
		return *p
	}
	return nil
}

func (q *tcpQP) PollCompletion(ctx context.Context) (Completion, error) {
	return q.cq.poll(ctx)
}

// Close does not wait for a post in progress; closing the socket unblocks it.
func (q *tcpQP) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	q.cq.close()
	err := q.conn.Close()
	if q.brokenErr() != nil {
		return nil
	}
	return err
}
