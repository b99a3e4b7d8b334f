// Package slice implements the owned, contiguous byte buffer passed
// between transactions and back-ends (spec.md §3 "Slice").
package slice

// Slice is an owned contiguous byte buffer exposing a current size and an
// Append operation. Appended chunks may coalesce into the same backing
// array; callers never see or manage that capacity directly.
//
// A Slice is not safe for concurrent use: ownership transfers from caller
// to callee on every Write/Read call per the back-end's documented buffer
// semantics (spec.md §3 "a Slice passed to Write is logically consumed
// immediately").
type Slice struct {
	buf []byte
}

// New returns an empty Slice ready to accept Append calls.
func New() *Slice {
	return &Slice{}
}

// FromBytes wraps an existing byte slice without copying it. The caller
// must not mutate b after this call.
func FromBytes(b []byte) *Slice {
	return &Slice{buf: b}
}

// WithCapacity returns an empty Slice whose backing array is pre-sized,
// avoiding reallocation for callers that know the eventual size.
func WithCapacity(capacity int) *Slice {
	return &Slice{buf: make([]byte, 0, capacity)}
}

// Append copies b onto the end of the slice's backing buffer, coalescing
// with any previously appended bytes.
func (s *Slice) Append(b []byte) {
	s.buf = append(s.buf, b...)
}

// Len returns the number of bytes currently held.
func (s *Slice) Len() int {
	return len(s.buf)
}

// Bytes returns the current contents. The returned slice aliases the
// Slice's internal storage and must be treated as read-only by the
// caller; it is invalidated by the next Append.
func (s *Slice) Bytes() []byte {
	return s.buf
}

// Reset empties the slice while retaining its backing array, so it can be
// reused across many Read/Write calls without reallocating.
func (s *Slice) Reset() {
	s.buf = s.buf[:0]
}

// Clone returns a Slice holding an independent copy of the current bytes.
func (s *Slice) Clone() *Slice {
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return &Slice{buf: out}
}
