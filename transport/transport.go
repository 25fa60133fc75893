package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// RemoteRegionID is the rkey under which a memory node registers its region.
const RemoteRegionID uint32 = 97

// Node is the (host, control port) identity of a memory node.
type Node struct {
	Host string
	Port int
}

// Addr returns host:port.
func (n Node) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

func (n Node) String() string {
	return n.Addr()
}

// RegionInfo describes a registered remote region.
type RegionInfo struct {
	// Base is the remote address of the first byte.
	Base uint64
	// RKey authorizes access to the region.
	RKey uint32
	// Length is the region size in bytes.
	Length uint64
}

// Contains reports whether [addr, addr+n) lies inside the region.
func (r RegionInfo) Contains(addr, n uint64) bool {
	if addr < r.Base {
		return false
	}
	off := addr - r.Base
	end := off + n
	return end >= off && end <= r.Length
}

// Op is a one-sided operation.
type Op uint8

const (
	OpRead  Op = 1
	OpWrite Op = 2
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// WorkRequest is one one-sided operation against the remote region.
//
// For a read, Local receives len(Local) bytes from RemoteAddr.
// For a write, Local is copied to RemoteAddr.
type WorkRequest struct {
	ID         uint64
	Local      []byte
	RemoteAddr uint64
	RKey       uint32
	// Signaled requests produce a completion on success.
	// Failed requests always produce one.
	Signaled bool
}

// Status is the outcome of a work request.
type Status uint8

const (
	StatusOK Status = iota
	StatusBadRKey
	StatusOutOfBounds
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBadRKey:
		return "bad rkey"
	case StatusOutOfBounds:
		return "out of bounds"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Completion is a polled work completion.
type Completion struct {
	ID     uint64
	Status Status
	// Err carries detail for a non-OK status.
	Err error
}

// Fabric creates queue pairs to memory nodes.
type Fabric interface {
	Dial(ctx context.Context, node Node) (QueuePair, error)
}

// QueuePair is a connected reliable queue pair with its completion queue.
//
// Post methods return an error only if the requests could not be submitted.
// Execution failures surface as error completions. After a failed request
// the remainder of its chain is discarded without completions. ctx bounds
// the submission; a fabric may abandon the connection when it expires.
type QueuePair interface {
	RemoteRegion() RegionInfo
	PostRead(ctx context.Context, chain []WorkRequest) error
	PostWrite(ctx context.Context, wr WorkRequest) error
	PollCompletion(ctx context.Context) (Completion, error)
	Close() error
}

// Range selects offsets[Start:End] for a batched read.
type Range struct {
	Start, End int
}

// Len returns End-Start.
func (r Range) Len() int {
	return r.End - r.Start
}

// Reader is the read side shared by Connection and Pool.
type Reader interface {
	// Read fills buf from the remote region at off.
	Read(ctx context.Context, buf []byte, off uint64) error
	// ReadBatch reads itemLen bytes at each of offsets[r.Start:r.End] into
	// consecutive itemLen-sized slots of buf.
	ReadBatch(ctx context.Context, buf []byte, itemLen int, offsets []uint64, r Range) error
}
