// Package local implements the local-filesystem back-end (spec.md
// §4.5 "Local filesystem"), adapted from the teacher's filesystem
// block store (pkg/payload/store/fs): atomic write-then-rename
// uploads, xattr-backed attributes under the "user.grid." namespace,
// and directory creation on demand.
package local

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/oio-go/blobkit/blob"
	"github.com/oio-go/blobkit/slice"
	"github.com/oio-go/blobkit/status"
)

// xattrPrefix is the vendor namespace every attribute is stored under
// (spec.md §6 "Xattrs under the user.grid. namespace").
const xattrPrefix = "user.grid."

// defaultReadBufferSize bounds a single Download.Read call (spec.md
// §4.5: "bounded-size buffer (default 1 MiB)").
const defaultReadBufferSize = 1 << 20

// Config configures the local back-end.
type Config struct {
	DirMode  os.FileMode
	FileMode os.FileMode

	// ReadBufferSize overrides the default 1 MiB Download read size.
	ReadBufferSize int
}

// DefaultConfig returns the spec's default modes and buffer size.
func DefaultConfig() Config {
	return Config{DirMode: 0755, FileMode: 0644, ReadBufferSize: defaultReadBufferSize}
}

func (c Config) readBufferSize() int {
	if c.ReadBufferSize > 0 {
		return c.ReadBufferSize
	}
	return defaultReadBufferSize
}

// Upload writes a chunk to "<path>.pending", applying xattrs, then
// renames it onto "<path>" atomically on Commit.
type Upload struct {
	blob.Machine

	path    string
	tmpPath string
	cfg     Config

	file   *os.File
	xattrs map[string]string
	mu     sync.Mutex
}

// NewUpload builds an Upload targeting path.
func NewUpload(path string, cfg Config) *Upload {
	return &Upload{path: path, tmpPath: path + ".pending", cfg: cfg, xattrs: make(map[string]string)}
}

// SetXattr records a key/value pair; the recorded pairs are applied to
// the pending file in Commit, before the rename.
func (u *Upload) SetXattr(key, value string) status.Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.xattrs[key] = value
	return status.Ok()
}

// Prepare creates parent directories and opens the pending file.
func (u *Upload) Prepare() status.Status {
	if st := u.RequirePrepare(); !st.Ok() {
		return st
	}

	dir := filepath.Dir(u.tmpPath)
	if err := os.MkdirAll(dir, u.cfg.DirMode); err != nil {
		return status.New(status.InternalError, "local: mkdir %s: %v", dir, err)
	}

	f, err := os.OpenFile(u.tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, u.cfg.FileMode)
	if err != nil {
		return status.New(status.InternalError, "local: open %s: %v", u.tmpPath, err)
	}
	u.file = f
	u.EnterPrepared()
	return status.Ok()
}

// Write appends bytes to the pending file.
func (u *Upload) Write(s *slice.Slice) status.Status {
	if st := u.RequireWrite(); !st.Ok() {
		return st
	}
	if _, err := u.file.Write(s.Bytes()); err != nil {
		return status.New(status.NetworkError, "local: write %s: %v", u.tmpPath, err)
	}
	return status.Ok()
}

// Commit applies xattrs, closes and atomically renames the pending
// file onto its final path.
func (u *Upload) Commit() status.Status {
	if st := u.RequireTerminal(); !st.Ok() {
		return st
	}
	defer u.EnterDone()

	for k, v := range u.xattrs {
		if err := unix.Fsetxattr(int(u.file.Fd()), xattrPrefix+k, []byte(v), 0); err != nil {
			_ = u.file.Close()
			_ = os.Remove(u.tmpPath)
			return status.New(status.InternalError, "local: setxattr %s: %v", k, err)
		}
	}
	if err := u.file.Close(); err != nil {
		return status.New(status.InternalError, "local: close %s: %v", u.tmpPath, err)
	}
	if err := os.Rename(u.tmpPath, u.path); err != nil {
		return status.New(status.InternalError, "local: rename %s -> %s: %v", u.tmpPath, u.path, err)
	}
	return status.Ok()
}

// Abort discards the pending file.
func (u *Upload) Abort() status.Status {
	if u.State() == blob.StateDone {
		return status.New(status.InternalError, "local: abort called in state Done")
	}
	defer u.EnterDone()

	if u.file != nil {
		_ = u.file.Close()
	}
	if err := os.Remove(u.tmpPath); err != nil && !os.IsNotExist(err) {
		return status.New(status.InternalError, "local: remove %s: %v", u.tmpPath, err)
	}
	return status.Ok()
}

// Download reads an existing file, retrying on EAGAIN (spec.md §4.5:
// "read with nonblocking retry on EAGAIN").
type Download struct {
	blob.Machine

	path string
	cfg  Config

	file      *os.File
	rng       blob.Range
	remaining int64
	eof       bool
}

// NewDownload builds a Download reading path.
func NewDownload(path string, cfg Config) *Download {
	return &Download{path: path, cfg: cfg, rng: blob.All}
}

// SetRange restricts the read window.
func (d *Download) SetRange(offset, size uint64) status.Status {
	if d.State() != blob.StateInit {
		return status.New(status.InternalError, "local: SetRange called in state %v", d.State())
	}
	d.rng = blob.Range{Start: offset, Size: size}
	return status.Ok()
}

// Prepare opens the file and seeks to the range start.
func (d *Download) Prepare() status.Status {
	if st := d.RequirePrepare(); !st.Ok() {
		return st
	}

	f, err := os.Open(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return status.New(status.NotFound, "local: %s", d.path)
		}
		return status.New(status.InternalError, "local: open %s: %v", d.path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return status.New(status.InternalError, "local: stat %s: %v", d.path, err)
	}

	if d.rng.Start > 0 {
		if _, err := f.Seek(int64(d.rng.Start), 0); err != nil {
			_ = f.Close()
			return status.New(status.InternalError, "local: seek %s: %v", d.path, err)
		}
	}

	end := d.rng.End(uint64(info.Size()))
	if end < d.rng.Start {
		end = d.rng.Start
	}
	d.remaining = int64(end - d.rng.Start)
	d.file = f
	d.EnterPrepared()
	return status.Ok()
}

// IsEof reports whether the download has delivered its full window.
func (d *Download) IsEof() bool {
	return d.eof
}

// Read appends the next fragment to s, retrying transparently on
// EAGAIN.
func (d *Download) Read(s *slice.Slice) status.Status {
	if st := d.RequireWrite(); !st.Ok() {
		return st
	}
	if d.remaining <= 0 {
		d.eof = true
		return status.Ok()
	}

	want := int64(d.cfg.readBufferSize())
	if want > d.remaining {
		want = d.remaining
	}
	buf := make([]byte, want)

	for {
		n, err := d.file.Read(buf)
		if n > 0 {
			s.Append(buf[:n])
			d.remaining -= int64(n)
		}
		if err == nil {
			if d.remaining <= 0 {
				d.eof = true
			}
			return status.Ok()
		}
		if errors.Is(err, syscall.EAGAIN) {
			time.Sleep(time.Millisecond)
			continue
		}
		if errors.Is(err, io.EOF) {
			d.eof = true
			return status.Ok()
		}
		return status.New(status.InternalError, "local: read %s: %v", d.path, err)
	}
}

// Removal stats then unlinks a file (spec.md §4.5: "stat then unlink").
type Removal struct {
	blob.Machine
	path string
}

// NewRemoval builds a Removal targeting path.
func NewRemoval(path string) *Removal {
	return &Removal{path: path}
}

// Prepare validates the target exists.
func (r *Removal) Prepare() status.Status {
	if st := r.RequirePrepare(); !st.Ok() {
		return st
	}
	if _, err := os.Stat(r.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return status.New(status.NotFound, "local: %s", r.path)
		}
		return status.New(status.InternalError, "local: stat %s: %v", r.path, err)
	}
	r.EnterPrepared()
	return status.Ok()
}

// Commit unlinks the file.
func (r *Removal) Commit() status.Status {
	if st := r.RequireTerminal(); !st.Ok() {
		return st
	}
	defer r.EnterDone()
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return status.New(status.InternalError, "local: remove %s: %v", r.path, err)
	}
	return status.Ok()
}

// Abort is a no-op: nothing was mutated by Prepare.
func (r *Removal) Abort() status.Status {
	if st := r.RequireTerminal(); !st.Ok() {
		return st
	}
	r.EnterDone()
	return status.Ok()
}
