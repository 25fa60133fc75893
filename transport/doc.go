// Package transport provides one-sided access to a memory node's region.
//
// The package is modelled on RDMA verbs. A Fabric dials a memory node and
// returns a QueuePair; work requests are posted to the queue pair and their
// outcome is polled from its completion queue. Reads and writes never
// involve code on the memory node that knows what the region contains.
//
// # Connections
//
//	conn, err := transport.Connect(ctx, fabric, transport.Node{Host: "mem0", Port: 7000})
//	if err != nil {
//	    return err // only ctx ends the retry loop
//	}
//	defer conn.Close()
//
//	buf := make([]byte, 96)
//	err = conn.Read(ctx, buf, off)
//
// Connect retries a failed dial every 2ms until ctx is done. Read, Write
// and ReadBatch fail fast: a failure is returned as *OpError wrapping
// ErrSubmission or ErrCompletion and is never retried.
//
// ReadBatch posts one chain for many offsets and signals only the last
// request, so a batch costs one completion.
//
// Pool holds one connection per compute worker and implements the same
// Reader interface by borrowing a connection per call.
//
// # Fabrics
//
//   - Loopback: in-process, reads and writes the registered buffer directly.
//     Supports fault injection for tests.
//   - TCPFabric and Server: a software responder that executes framed work
//     requests over TCP. Requests of a chain are pipelined while their
//     responses are read, and ctx bounds the socket I/O. A post abandoned
//     by ctx breaks the connection.
//
// A hardware binding implements Fabric and QueuePair on top of ibverbs.
package transport
