package httpcodec

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/oio-go/blobkit/slice"
	"github.com/oio-go/blobkit/status"
)

// bodyChunk is one unit of ingress delivered by the reactor's read
// goroutine to AppendBody callers.
type bodyChunk struct {
	data []byte
	done bool
	err  error
}

// ReactiveCodec is the event-loop-based sibling of Codec (spec.md §4.2,
// §4.5 "HTTP reactive back-end"). Reads run on a pump goroutine that
// ReadHeaders starts, and AppendBody callers suspend on a channel
// receive rather than blocking directly on the socket; WriteHeaders,
// Write and FinishRequest write on the calling goroutine. Egress
// back-pressure counts only the bytes of Write calls still in progress:
// a Write waits while other Writes are in progress and adding its bytes
// would exceed egressLimit. A lone Write is never held back, and bytes
// already handed to the buffered writer are no longer counted.
type ReactiveCodec struct {
	conn io.ReadWriteCloser
	sync *Codec // reused for wire framing; writes run on the caller's goroutine, reads on the pump goroutine

	egressLimit  int64
	ingressLimit int

	mu          sync.Mutex
	cond        *sync.Cond
	queuedBytes int64
	closed      bool
	closeErr    error

	ingress chan bodyChunk
	stop    chan struct{}

	wg sync.WaitGroup
}

// NewReactive wraps conn in a ReactiveCodec. egressLimitBytes bounds the
// bytes of concurrent in-progress Write calls (see ReactiveCodec);
// ingressQueueDepth bounds how many body chunks the read side may get
// ahead of the caller's AppendBody before it stops reading the socket.
func NewReactive(conn io.ReadWriteCloser, egressLimitBytes int64, ingressQueueDepth int) *ReactiveCodec {
	r := &ReactiveCodec{
		conn:         conn,
		sync:         New(conn),
		egressLimit:  egressLimitBytes,
		ingressLimit: ingressQueueDepth,
		ingress:      make(chan bodyChunk, ingressQueueDepth),
		stop:         make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Connect is a no-op placeholder for parity with the synchronous codec's
// lifecycle; conn is assumed already connected. It exists so callers can
// treat Connect/WriteHeaders/... as one uniform sequence regardless of
// which codec variant is in play.
func (r *ReactiveCodec) Connect() error {
	return nil
}

// WriteHeaders blocks until the header section has been queued for
// write; it does not wait for the flush.
func (r *ReactiveCodec) WriteHeaders(method, urlSelector string, headers http.Header, trailers http.Header) error {
	return r.sync.WriteHeaders(method, urlSelector, headers, trailers)
}

// Write writes body bytes on the caller's goroutine, first suspending
// the caller while other Write calls are in progress and their bytes
// plus len(body) exceed egressLimit (back-pressure).
func (r *ReactiveCodec) Write(body []byte) (int, error) {
	r.mu.Lock()
	for r.queuedBytes > 0 && r.queuedBytes+int64(len(body)) > r.egressLimit && !r.closed {
		r.cond.Wait()
	}
	if r.closed {
		r.mu.Unlock()
		return 0, fmt.Errorf("httpcodec: reactive codec closed: %w", r.closeErr)
	}
	r.queuedBytes += int64(len(body))
	r.mu.Unlock()

	n, err := r.sync.Write(body)

	r.mu.Lock()
	r.queuedBytes -= int64(len(body))
	r.cond.Broadcast()
	r.mu.Unlock()

	return n, err
}

// FinishRequest flushes the terminating frame to the wire.
func (r *ReactiveCodec) FinishRequest() error {
	return r.sync.FinishRequest()
}

// ReadHeaders starts the read-side loop goroutine and returns once the
// reply status line and headers have arrived.
func (r *ReactiveCodec) ReadHeaders() (httpStatus int, headers http.Header, err error) {
	httpStatus, headers, err = r.sync.ReadHeaders()
	if err != nil {
		return 0, nil, err
	}
	r.wg.Add(1)
	go r.pump()
	return httpStatus, headers, nil
}

// pump is the reactor's read-side loop: it drains the body from the
// wire and posts chunks to the bounded ingress channel, suspending
// (blocking on channel send) whenever the caller has fallen behind by
// more than ingressLimit chunks.
func (r *ReactiveCodec) pump() {
	defer r.wg.Done()
	for {
		dst := slice.New()
		done, err := r.sync.AppendBody(dst)
		if err != nil {
			r.send(bodyChunk{err: err})
			return
		}
		if dst.Len() > 0 {
			if !r.send(bodyChunk{data: dst.Bytes()}) {
				return
			}
		}
		if done {
			r.send(bodyChunk{done: true})
			return
		}
	}
}

// send posts chunk to the ingress channel, suspending while the caller
// is backed up, but abandoning the send if the transaction is aborted
// out from under it.
func (r *ReactiveCodec) send(chunk bodyChunk) bool {
	select {
	case r.ingress <- chunk:
		return true
	case <-r.stop:
		return false
	}
}

// AppendBody suspends the caller until the reactor delivers the next
// body chunk or Abort is called, appending the chunk to dst.
func (r *ReactiveCodec) AppendBody(dst *slice.Slice) (done bool, err error) {
	var chunk bodyChunk
	var ok bool
	select {
	case chunk, ok = <-r.ingress:
	case <-r.stop:
		return false, fmt.Errorf("httpcodec: reactive codec closed: %w", r.closeErr)
	}
	if !ok {
		return true, nil
	}
	if chunk.err != nil {
		return false, chunk.err
	}
	if len(chunk.data) > 0 {
		dst.Append(chunk.data)
	}
	return chunk.done, nil
}

// Abort tears down the transaction: closes the socket and wakes any
// caller suspended in Write or AppendBody with a NetworkError-equivalent
// failure, per spec.md §5 "Cancellation".
func (r *ReactiveCodec) Abort() status.Status {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return status.Ok()
	}
	r.closed = true
	r.closeErr = fmt.Errorf("aborted")
	r.cond.Broadcast()
	r.mu.Unlock()

	close(r.stop)
	err := r.conn.Close()
	r.wg.Wait()

	if err != nil {
		return status.New(status.NetworkError, "httpcodec: abort close: %v", err)
	}
	return status.Ok()
}
