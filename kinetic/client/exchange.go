package client

import (
	"time"

	"github.com/oio-go/blobkit/kinetic/rpc"
	"github.com/oio-go/blobkit/status"
)

// Result is what Wait delivers once an exchange completes, by reply or
// by timeout/network failure.
type Result struct {
	Status status.Status
	Reply  *rpc.Command
	Value  []byte
}

// PendingExchange tracks one in-flight request while its reply is
// outstanding (spec.md §3 "PendingExchange"). It is created by RPC and
// destroyed when the matching reply is processed, the deadline expires,
// or the client is closed.
type PendingExchange struct {
	SequenceID int64
	Deadline   time.Time

	done chan Result
}

// Wait suspends the caller until the exchange completes, by reply,
// timeout, or client closure.
func (pe *PendingExchange) Wait() Result {
	return <-pe.done
}

func newPendingExchange(seq int64, deadline time.Time) *PendingExchange {
	return &PendingExchange{
		SequenceID: seq,
		Deadline:   deadline,
		done:       make(chan Result, 1),
	}
}

func (pe *PendingExchange) complete(r Result) {
	select {
	case pe.done <- r:
	default:
	}
}
