// Package memcache implements the in-memory back-end (spec.md §4.5
// "In-memory back-end": "a shared cache indexed by name, with
// per-entry pending flag"), plus a crash-durable sibling backed by
// Badger (SPEC_FULL.md §10.3) sharing the same Upload/Download/
// Removal surface over a small internal store interface.
package memcache

import (
	"sync"

	"github.com/oio-go/blobkit/blob"
	"github.com/oio-go/blobkit/slice"
	"github.com/oio-go/blobkit/status"
)

// store is the minimal key/value contract both the plain-map Cache
// and the Badger-backed Durable store satisfy: a shared cache indexed
// by name, with a per-entry pending flag (spec.md §4.5).
type store interface {
	get(name string) ([]byte, bool, error)
	delete(name string) error
	list(prefix string) ([]string, error)

	markPending(name string) error
	commitPending(name string, value []byte) error
	discardPending(name string) error
}

// entry is one cached value, with the pending flag spec.md calls for:
// a value is visible to Download/Listing only once its Upload has
// committed.
type entry struct {
	value   []byte
	pending bool
}

// Cache is the plain in-memory back-end: a process-local map, for
// tests and local synthetic stores.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New builds an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

func (c *Cache) get(name string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok || e.pending {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (c *Cache) delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
	return nil
}

func (c *Cache) list(prefix string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var names []string
	for name, e := range c.entries {
		if e.pending {
			continue
		}
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			names = append(names, name)
		}
	}
	return names, nil
}

func (c *Cache) markPending(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = &entry{pending: true}
	return nil
}

func (c *Cache) commitPending(name string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = &entry{value: value}
	return nil
}

func (c *Cache) discardPending(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[name]; ok && e.pending {
		delete(c.entries, name)
	}
	return nil
}

// Upload buffers a payload under name, only becoming visible on Commit.
type Upload struct {
	blob.Machine

	s    store
	name string
	buf  []byte
}

// NewUpload builds an Upload writing name into s (a *Cache or *Durable).
func NewUpload(s store, name string) *Upload {
	return &Upload{s: s, name: name}
}

// Prepare marks the entry pending so concurrent readers see it as
// absent until Commit.
func (u *Upload) Prepare() status.Status {
	if st := u.RequirePrepare(); !st.Ok() {
		return st
	}
	if err := u.s.markPending(u.name); err != nil {
		return status.New(status.InternalError, "memcache: mark pending %s: %v", u.name, err)
	}
	u.EnterPrepared()
	return status.Ok()
}

// Write buffers the bytes; memcache has no partial-write API.
func (u *Upload) Write(s *slice.Slice) status.Status {
	if st := u.RequireWrite(); !st.Ok() {
		return st
	}
	u.buf = append(u.buf, s.Bytes()...)
	return status.Ok()
}

// Commit makes the buffered payload visible under name.
func (u *Upload) Commit() status.Status {
	if st := u.RequireTerminal(); !st.Ok() {
		return st
	}
	defer u.EnterDone()

	if err := u.s.commitPending(u.name, u.buf); err != nil {
		return status.New(status.InternalError, "memcache: commit %s: %v", u.name, err)
	}
	return status.Ok()
}

// Abort discards the pending entry.
func (u *Upload) Abort() status.Status {
	if u.State() == blob.StateDone {
		return status.New(status.InternalError, "memcache: abort called in state Done")
	}
	defer u.EnterDone()

	if err := u.s.discardPending(u.name); err != nil {
		return status.New(status.InternalError, "memcache: discard %s: %v", u.name, err)
	}
	return status.Ok()
}

// Download reads a committed entry.
type Download struct {
	blob.Machine

	s    store
	name string
	rng  blob.Range

	value []byte
	eof   bool
}

// NewDownload builds a Download reading name from s.
func NewDownload(s store, name string) *Download {
	return &Download{s: s, name: name, rng: blob.All}
}

// SetRange restricts the delivered window.
func (d *Download) SetRange(offset, size uint64) status.Status {
	if d.State() != blob.StateInit {
		return status.New(status.InternalError, "memcache: SetRange called in state %v", d.State())
	}
	d.rng = blob.Range{Start: offset, Size: size}
	return status.Ok()
}

// Prepare looks up the entry.
func (d *Download) Prepare() status.Status {
	if st := d.RequirePrepare(); !st.Ok() {
		return st
	}

	value, ok, err := d.s.get(d.name)
	if err != nil {
		return status.New(status.InternalError, "memcache: get %s: %v", d.name, err)
	}
	if !ok {
		return status.New(status.NotFound, "memcache: %s", d.name)
	}

	if !d.rng.IsAll() {
		end := d.rng.End(uint64(len(value)))
		start := d.rng.Start
		if start > uint64(len(value)) {
			start = uint64(len(value))
		}
		if end > uint64(len(value)) {
			end = uint64(len(value))
		}
		value = value[start:end]
	}

	d.value = value
	d.EnterPrepared()
	return status.Ok()
}

// IsEof reports whether the value has been delivered.
func (d *Download) IsEof() bool {
	return d.eof
}

// Read delivers the whole value in one call.
func (d *Download) Read(s *slice.Slice) status.Status {
	if st := d.RequireWrite(); !st.Ok() {
		return st
	}
	if !d.eof {
		s.Append(d.value)
		d.eof = true
	}
	return status.Ok()
}

// Removal deletes a committed entry.
type Removal struct {
	blob.Machine

	s    store
	name string
}

// NewRemoval builds a Removal targeting name in s.
func NewRemoval(s store, name string) *Removal {
	return &Removal{s: s, name: name}
}

// Prepare confirms the entry exists.
func (r *Removal) Prepare() status.Status {
	if st := r.RequirePrepare(); !st.Ok() {
		return st
	}
	_, ok, err := r.s.get(r.name)
	if err != nil {
		return status.New(status.InternalError, "memcache: get %s: %v", r.name, err)
	}
	if !ok {
		return status.New(status.NotFound, "memcache: %s", r.name)
	}
	r.EnterPrepared()
	return status.Ok()
}

// Commit deletes the entry.
func (r *Removal) Commit() status.Status {
	if st := r.RequireTerminal(); !st.Ok() {
		return st
	}
	defer r.EnterDone()
	if err := r.s.delete(r.name); err != nil {
		return status.New(status.InternalError, "memcache: delete %s: %v", r.name, err)
	}
	return status.Ok()
}

// Abort is a no-op: Prepare only read.
func (r *Removal) Abort() status.Status {
	if st := r.RequireTerminal(); !st.Ok() {
		return st
	}
	r.EnterDone()
	return status.Ok()
}

// Listing enumerates entries under a name prefix.
type Listing struct {
	blob.Machine

	s        store
	prefix   string
	serviceID string

	names []string
	pos   int
}

// NewListing builds a Listing over s's entries with the given prefix,
// tagging every yielded pair with serviceID.
func NewListing(s store, prefix, serviceID string) *Listing {
	return &Listing{s: s, prefix: prefix, serviceID: serviceID}
}

// Prepare loads the matching names.
func (l *Listing) Prepare() status.Status {
	if st := l.RequirePrepare(); !st.Ok() {
		return st
	}
	names, err := l.s.list(l.prefix)
	if err != nil {
		return status.New(status.InternalError, "memcache: list %s: %v", l.prefix, err)
	}
	l.names = names
	l.EnterPrepared()
	return status.Ok()
}

// Next yields the next (serviceID, name) pair.
func (l *Listing) Next() (id string, key string, ok bool) {
	if l.pos >= len(l.names) {
		return "", "", false
	}
	key = l.names[l.pos]
	l.pos++
	return l.serviceID, key, true
}
