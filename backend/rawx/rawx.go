// Package rawx implements the HTTP "rawx" back-end (spec.md §4.5): a
// synchronous transaction built directly on httpcodec, carrying chunk
// attributes as X-oio-chunk-meta-* vendor headers and the chunk size
// and hash as trailers.
package rawx

import (
	"net"
	"net/http"
	"strconv"

	"github.com/oio-go/blobkit/blob"
	"github.com/oio-go/blobkit/httpcodec"
	"github.com/oio-go/blobkit/slice"
	"github.com/oio-go/blobkit/status"
)

// metaPrefix is the vendor header prefix carrying chunk attributes
// (spec.md §4.2 "a vendor prefix on xattr fields (e.g.
// X-oio-chunk-meta-*)").
const metaPrefix = "X-oio-chunk-meta-"

// Upload streams a chunk's body to a rawx over a chunked-encoded PUT,
// trailing the final chunk-size and chunk-hash announced via Trailer.
type Upload struct {
	blob.Machine

	url  blob.Url
	conn net.Conn

	codec    *httpcodec.Codec
	headers  http.Header
	trailers http.Header
	written  int64
}

// NewUpload builds an Upload targeting a chunk at url, writing over conn.
func NewUpload(url blob.Url, conn net.Conn) *Upload {
	return &Upload{url: url, conn: conn, headers: make(http.Header)}
}

// SetXattr records a chunk attribute as an X-oio-chunk-meta-<key> header.
func (u *Upload) SetXattr(key, value string) status.Status {
	u.headers.Set(metaPrefix+key, value)
	return status.Ok()
}

// Prepare sends the request line, vendor headers, and arms chunked
// transfer encoding.
func (u *Upload) Prepare() status.Status {
	if st := u.RequirePrepare(); !st.Ok() {
		return st
	}

	u.codec = httpcodec.New(u.conn)
	u.headers.Set("Host", u.url.Short())
	u.headers.Set("Transfer-Encoding", "chunked")

	u.trailers = make(http.Header)
	u.trailers.Set("chunk-size", "")
	u.trailers.Set("chunk-hash", "")

	if err := u.codec.WriteHeaders("PUT", "/"+u.url.ChunkID, u.headers, u.trailers); err != nil {
		return status.New(status.NetworkError, "rawx: write headers: %v", err)
	}
	u.EnterPrepared()
	return status.Ok()
}

// Write streams a body fragment as one HTTP chunk.
func (u *Upload) Write(s *slice.Slice) status.Status {
	if st := u.RequireWrite(); !st.Ok() {
		return st
	}
	n, err := u.codec.Write(s.Bytes())
	if err != nil {
		return status.New(status.NetworkError, "rawx: write body: %v", err)
	}
	u.written += int64(n)
	return status.Ok()
}

// Commit announces the final chunk-size/chunk-hash trailers, finishes
// the request, and reads the reply. The chunk-hash trailer is drawn
// from whatever SetXattr("chunk-hash", ...) recorded before Prepare;
// callers that stream bytes without knowing the hash up front should
// call SetXattr again before Commit to refresh it.
func (u *Upload) Commit() status.Status {
	if st := u.RequireTerminal(); !st.Ok() {
		return st
	}
	defer u.EnterDone()

	u.trailers.Set("chunk-size", strconv.FormatInt(u.written, 10))
	u.trailers.Set("chunk-hash", u.headers.Get(metaPrefix+"chunk-hash"))

	if err := u.codec.FinishRequest(); err != nil {
		return status.New(status.NetworkError, "rawx: finish request: %v", err)
	}

	httpStatus, _, err := u.codec.ReadHeaders()
	if err != nil {
		return status.New(status.NetworkError, "rawx: read reply: %v", err)
	}
	return httpcodec.ToStatus(codeFor(httpStatus), httpStatus)
}

// Abort closes the underlying connection, discarding the transaction.
func (u *Upload) Abort() status.Status {
	if u.State() == blob.StateDone {
		return status.New(status.InternalError, "rawx: abort called in state Done")
	}
	defer u.EnterDone()
	if err := u.conn.Close(); err != nil {
		return status.New(status.NetworkError, "rawx: close: %v", err)
	}
	return status.Ok()
}

func codeFor(httpStatus int) httpcodec.Code {
	switch {
	case httpStatus >= 200 && httpStatus < 300:
		return httpcodec.OK
	case httpStatus >= 400 && httpStatus < 500:
		return httpcodec.ClientError
	case httpStatus >= 500:
		return httpcodec.ServerError
	default:
		return httpcodec.ClientError
	}
}

// Download reads an existing chunk's body over a synchronous GET.
type Download struct {
	blob.Machine

	url  blob.Url
	conn net.Conn

	codec   *httpcodec.Codec
	rng     blob.Range
	eof     bool
}

// NewDownload builds a Download reading a chunk at url over conn.
func NewDownload(url blob.Url, conn net.Conn) *Download {
	return &Download{url: url, conn: conn, rng: blob.All}
}

// SetRange restricts the read window via a Range header.
func (d *Download) SetRange(offset, size uint64) status.Status {
	if d.State() != blob.StateInit {
		return status.New(status.InternalError, "rawx: SetRange called in state %v", d.State())
	}
	d.rng = blob.Range{Start: offset, Size: size}
	return status.Ok()
}

// Prepare sends the GET request and reads the reply headers.
func (d *Download) Prepare() status.Status {
	if st := d.RequirePrepare(); !st.Ok() {
		return st
	}

	d.codec = httpcodec.New(d.conn)
	headers := make(http.Header)
	headers.Set("Host", d.url.Short())
	if !d.rng.IsAll() {
		headers.Set("Range", "bytes="+strconv.FormatUint(d.rng.Start, 10)+"-"+strconv.FormatUint(d.rng.Start+d.rng.Size-1, 10))
	}

	if err := d.codec.WriteHeaders("GET", "/"+d.url.ChunkID, headers, nil); err != nil {
		return status.New(status.NetworkError, "rawx: write headers: %v", err)
	}
	if err := d.codec.FinishRequest(); err != nil {
		return status.New(status.NetworkError, "rawx: finish request: %v", err)
	}

	httpStatus, _, err := d.codec.ReadHeaders()
	if err != nil {
		return status.New(status.NetworkError, "rawx: read reply: %v", err)
	}
	if st := httpcodec.ToStatus(codeFor(httpStatus), httpStatus); !st.Ok() {
		return st
	}

	d.EnterPrepared()
	return status.Ok()
}

// IsEof reports whether the reply body has been fully consumed.
func (d *Download) IsEof() bool {
	return d.eof
}

// Read appends the next fragment of the reply body to s.
func (d *Download) Read(s *slice.Slice) status.Status {
	if st := d.RequireWrite(); !st.Ok() {
		return st
	}
	done, err := d.codec.AppendBody(s)
	if err != nil {
		return status.New(status.NetworkError, "rawx: read body: %v", err)
	}
	d.eof = done
	return status.Ok()
}

// Removal issues a DELETE for a chunk.
type Removal struct {
	blob.Machine

	url  blob.Url
	conn net.Conn
}

// NewRemoval builds a Removal targeting a chunk at url over conn.
func NewRemoval(url blob.Url, conn net.Conn) *Removal {
	return &Removal{url: url, conn: conn}
}

// Prepare is a no-op: the DELETE request carries no precondition check.
func (r *Removal) Prepare() status.Status {
	if st := r.RequirePrepare(); !st.Ok() {
		return st
	}
	r.EnterPrepared()
	return status.Ok()
}

// Commit sends the DELETE request and reads the reply.
func (r *Removal) Commit() status.Status {
	if st := r.RequireTerminal(); !st.Ok() {
		return st
	}
	defer r.EnterDone()

	codec := httpcodec.New(r.conn)
	headers := make(http.Header)
	headers.Set("Host", r.url.Short())

	if err := codec.WriteHeaders("DELETE", "/"+r.url.ChunkID, headers, nil); err != nil {
		return status.New(status.NetworkError, "rawx: write headers: %v", err)
	}
	if err := codec.FinishRequest(); err != nil {
		return status.New(status.NetworkError, "rawx: finish request: %v", err)
	}

	httpStatus, _, err := codec.ReadHeaders()
	if err != nil {
		return status.New(status.NetworkError, "rawx: read reply: %v", err)
	}
	return httpcodec.ToStatus(codeFor(httpStatus), httpStatus)
}

// Abort closes the connection without issuing the DELETE.
func (r *Removal) Abort() status.Status {
	if st := r.RequireTerminal(); !st.Ok() {
		return st
	}
	defer r.EnterDone()
	if err := r.conn.Close(); err != nil {
		return status.New(status.NetworkError, "rawx: close: %v", err)
	}
	return status.Ok()
}
