// Package client implements the Kinetic coroutine client (spec.md §4.4):
// one instance per drive, multiplexing concurrent request/reply
// exchanges over a single TCP connection. The spec's cooperative
// single-threaded scheduler is expressed here the idiomatic Go way —
// a producer goroutine owns writes, a consumer goroutine owns reads,
// and a mutex-protected pending table is the one piece of state they
// share (in place of the spec's "only one task ever runs at a time").
package client

import (
	"sync/atomic"
)

// Context holds the per-connection identity shared by every exchange on
// a client (spec.md §4.4 "a shared Context"). ConnectionID is set when
// New constructs the Client; there is no handshake exchange, and the
// value never changes for the client's lifetime.
type Context struct {
	ClusterVersion int64
	ConnectionID   int64
	Identity       int64
	SharedSecret   []byte

	nextSequence atomic.Int64
}

// NextSequence returns the next strictly-increasing sequence_id
// (spec.md §4.4 "Ordering guarantees").
func (c *Context) NextSequence() int64 {
	return c.nextSequence.Add(1)
}
