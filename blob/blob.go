// Package blob defines the uniform blob transaction contract (spec.md
// §4.1): Upload, Download, Removal, and Listing. Every back-end in this
// module (local, rawx, Kinetic, in-memory, S3) and every fan-out engine
// (striping, replicated, erasure) implements these interfaces against the
// same three-phase state machine.
package blob

import (
	"github.com/oio-go/blobkit/slice"
	"github.com/oio-go/blobkit/status"
)

// Upload reserves, receives, and commits (or discards) a chunk payload
// plus its attributes.
//
// Call order: zero or more SetXattr, then Prepare, then any number of
// Write, then exactly one of Commit or Abort.
type Upload interface {
	// SetXattr registers a key/value pair to be persisted alongside the
	// payload. Valid only in StateInit.
	SetXattr(key, value string) status.Status

	// Prepare reserves the destination (creates a temp file, opens a
	// connection, allocates slots). Valid only in StateInit; transitions
	// to StatePrepared on success.
	Prepare() status.Status

	// Write appends payload bytes. The input Slice is logically consumed
	// immediately; back-ends copy the bytes they need before returning.
	// Valid only in StatePrepared.
	Write(s *slice.Slice) status.Status

	// Commit atomically promotes the pending artifact to its final name.
	// Valid only in StatePrepared; transitions to StateDone.
	Commit() status.Status

	// Abort best-effort destroys the pending artifact. Always
	// transitions to StateDone, regardless of starting state (except
	// StateDone, which rejects it).
	Abort() status.Status
}

// Download opens a source, optionally restricts it to a byte range, and
// streams it out.
type Download interface {
	// SetRange restricts the read to [offset, offset+size). size == 0
	// means "all". Must precede Prepare. Back-ends without random access
	// return Unsupported.
	SetRange(offset, size uint64) status.Status

	// Prepare opens and validates the source. Valid only in StateInit.
	Prepare() status.Status

	// IsEof reports whether the stream is exhausted.
	IsEof() bool

	// Read appends the next chunk of bytes onto s (append semantics, not
	// overwrite). A zero-byte read with IsEof() true marks end of
	// stream.
	Read(s *slice.Slice) status.Status
}

// Removal deletes an existing chunk. Commit is irreversible; Abort of an
// already-committed removal is a state-machine violation (InternalError).
type Removal interface {
	// Prepare validates the target exists. NotFound if absent.
	Prepare() status.Status
	// Commit performs the physical delete.
	Commit() status.Status
	// Abort cancels a prepared-but-not-committed removal.
	Abort() status.Status
}

// Listing enumerates (service ID, key) pairs belonging to a chunk.
// Ordering is per back-end; fan-out back-ends concatenate without a
// global sort (spec.md §4.1).
type Listing interface {
	// Prepare validates inputs and readies the listing for iteration.
	Prepare() status.Status
	// Next yields the next (serviceID, key) pair. Returns false once
	// exhausted; id/key are unspecified after that point.
	Next() (id string, key string, ok bool)
}
