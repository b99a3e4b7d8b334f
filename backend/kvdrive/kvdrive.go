// Package kvdrive implements the single-key Kinetic back-end (spec.md
// §4.5 "Kinetic single-key back-end"): Upload issues one PUT per Write
// call (no striping), Removal issues one DELETE, built directly on
// kinetic/client and kinetic/rpc.
package kvdrive

import (
	"time"

	"github.com/oio-go/blobkit/blob"
	"github.com/oio-go/blobkit/kinetic/client"
	"github.com/oio-go/blobkit/kinetic/rpc"
	"github.com/oio-go/blobkit/slice"
	"github.com/oio-go/blobkit/status"
)

// DefaultTimeout bounds a single exchange against the drive.
const DefaultTimeout = client.DefaultTimeout

// Upload issues one PUT per Write call against key on a single drive.
type Upload struct {
	blob.Machine

	c       *client.Client
	key     []byte
	synced  bool
	timeout time.Duration
}

// NewUpload builds an Upload writing key over c.
func NewUpload(c *client.Client, key []byte, synchronize bool) *Upload {
	return &Upload{c: c, key: key, synced: synchronize, timeout: DefaultTimeout}
}

// SetXattr is unsupported: the Kinetic protocol carries no attribute
// map alongside a value (spec.md §4.3's PUT body is key/tag/version
// only). Callers that need chunk attributes on Kinetic use the
// striping back-end's manifest object instead.
func (u *Upload) SetXattr(key, value string) status.Status {
	return status.New(status.Unsupported, "kvdrive: SetXattr is not supported")
}

// Prepare performs no drive interaction; the first Write is the first
// PUT.
func (u *Upload) Prepare() status.Status {
	if st := u.RequirePrepare(); !st.Ok() {
		return st
	}
	u.EnterPrepared()
	return status.Ok()
}

// Write issues one PUT carrying s's bytes as the value for the
// configured key.
func (u *Upload) Write(s *slice.Slice) status.Status {
	if st := u.RequireWrite(); !st.Ok() {
		return st
	}
	cmd := rpc.NewPutCommand(rpc.Header{}, u.key, nil, nil, nil, u.synced)
	res := u.c.RPC(cmd, s.Bytes(), u.timeout).Wait()
	return res.Status
}

// Commit is a no-op: every Write already completed its own PUT.
func (u *Upload) Commit() status.Status {
	if st := u.RequireTerminal(); !st.Ok() {
		return st
	}
	u.EnterDone()
	return status.Ok()
}

// Abort is a best-effort DELETE of whatever was last PUT under key.
func (u *Upload) Abort() status.Status {
	if u.State() == blob.StateDone {
		return status.New(status.InternalError, "kvdrive: abort called in state Done")
	}
	defer u.EnterDone()

	cmd := rpc.NewDeleteCommand(rpc.Header{}, u.key, false)
	res := u.c.RPC(cmd, nil, u.timeout).Wait()
	if !res.Status.Ok() && res.Status.Cause != status.NotFound {
		return res.Status
	}
	return status.Ok()
}

// Download issues one GET for key and delivers its value in a single
// Read call.
type Download struct {
	blob.Machine

	c       *client.Client
	key     []byte
	timeout time.Duration

	rng       blob.Range
	value     []byte
	delivered bool
}

// NewDownload builds a Download reading key over c.
func NewDownload(c *client.Client, key []byte) *Download {
	return &Download{c: c, key: key, timeout: DefaultTimeout, rng: blob.All}
}

// SetRange restricts the delivered window of the fetched value.
func (d *Download) SetRange(offset, size uint64) status.Status {
	if d.State() != blob.StateInit {
		return status.New(status.InternalError, "kvdrive: SetRange called in state %v", d.State())
	}
	d.rng = blob.Range{Start: offset, Size: size}
	return status.Ok()
}

// Prepare issues the GET and buffers the value.
func (d *Download) Prepare() status.Status {
	if st := d.RequirePrepare(); !st.Ok() {
		return st
	}

	cmd := rpc.NewGetCommand(rpc.Header{}, d.key)
	res := d.c.RPC(cmd, nil, d.timeout).Wait()
	if !res.Status.Ok() {
		return res.Status
	}

	value := res.Value
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

// IsEof reports whether the buffered value has been delivered.
func (d *Download) IsEof() bool {
	return d.delivered
}

// Read appends the entire buffered value in a single call.
func (d *Download) Read(s *slice.Slice) status.Status {
	if st := d.RequireWrite(); !st.Ok() {
		return st
	}
	if !d.delivered {
		s.Append(d.value)
		d.delivered = true
	}
	return status.Ok()
}

// Removal issues one DELETE for key.
type Removal struct {
	blob.Machine

	c       *client.Client
	key     []byte
	timeout time.Duration
}

// NewRemoval builds a Removal targeting key over c.
func NewRemoval(c *client.Client, key []byte) *Removal {
	return &Removal{c: c, key: key, timeout: DefaultTimeout}
}

// Prepare performs a GET to confirm the key exists.
func (r *Removal) Prepare() status.Status {
	if st := r.RequirePrepare(); !st.Ok() {
		return st
	}
	cmd := rpc.NewGetCommand(rpc.Header{}, r.key)
	res := r.c.RPC(cmd, nil, r.timeout).Wait()
	if !res.Status.Ok() {
		return res.Status
	}
	r.EnterPrepared()
	return status.Ok()
}

// Commit issues the DELETE.
func (r *Removal) Commit() status.Status {
	if st := r.RequireTerminal(); !st.Ok() {
		return st
	}
	defer r.EnterDone()

	cmd := rpc.NewDeleteCommand(rpc.Header{}, r.key, false)
	res := r.c.RPC(cmd, nil, r.timeout).Wait()
	return res.Status
}

// Abort is a no-op: Prepare only read, never mutated.
func (r *Removal) Abort() status.Status {
	if st := r.RequireTerminal(); !st.Ok() {
		return st
	}
	r.EnterDone()
	return status.Ok()
}
