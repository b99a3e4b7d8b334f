// Package stripe implements the striping Kinetic upload (spec.md §4.6,
// C8): a payload is split into fixed-size blocks, PUT round-robin
// across a set of drives, with a JSON xattr manifest committed last
// under key "<chunk_id>-#" so the manifest's existence is the
// chunk's sole durable commit marker. Grounded on
// original_source/oio/kinetic/blob/Upload.{h,cpp}'s block-buffer-
// and-flush loop, reworked onto kinetic/client/kinetic/rpc.
package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oio-go/blobkit/blob"
	"github.com/oio-go/blobkit/kinetic/client"
	"github.com/oio-go/blobkit/kinetic/rpc"
	"github.com/oio-go/blobkit/slice"
	"github.com/oio-go/blobkit/status"
)

// DefaultBlockSize is the block-splitting threshold (spec.md §4.6).
const DefaultBlockSize = 512 * 1024

// Config holds the settings shared by an Upload's drive set.
type Config struct {
	BlockSize   int
	Synchronize bool
	Timeout     time.Duration
}

func (c Config) blockSize() int {
	if c.BlockSize > 0 {
		return c.BlockSize
	}
	return DefaultBlockSize
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return client.DefaultTimeout
}

func manifestKey(chunkID string) string {
	return chunkID + "-#"
}

func blockKey(chunkID string, seq, length int) string {
	return fmt.Sprintf("%s-%d-%d", chunkID, seq, length)
}

type pendingPut struct {
	key      string
	drive    int
	exchange *client.PendingExchange
}

// Upload buffers bytes and flushes a PUT per block, round-robin
// across drives, fire-and-forget; Commit gathers every pending PUT
// and commits the xattr manifest last.
type Upload struct {
	blob.Machine

	clients []*client.Client
	chunkID string
	cfg     Config

	xattrs  map[string]string
	buf     []byte
	seq     int
	next    int
	pending []pendingPut
}

// NewUpload builds an Upload striping chunkID's payload across
// clients in round-robin order.
func NewUpload(clients []*client.Client, chunkID string, cfg Config) *Upload {
	return &Upload{
		clients: clients,
		chunkID: chunkID,
		cfg:     cfg,
		xattrs:  make(map[string]string),
	}
}

// SetXattr registers a key/value pair to be serialised into the
// manifest object committed last.
func (u *Upload) SetXattr(key, value string) status.Status {
	if u.State() != blob.StateInit {
		return status.New(status.InternalError, "stripe: SetXattr called in state %v", u.State())
	}
	u.xattrs[key] = value
	return status.Ok()
}

// Prepare issues a single-key GETKEYRANGE for the manifest key to
// every drive in parallel; any non-empty result fails Prepare with
// Already (spec.md §4.6 "Prepare").
func (u *Upload) Prepare() status.Status {
	if st := u.RequirePrepare(); !st.Ok() {
		return st
	}

	key := []byte(manifestKey(u.chunkID))
	type checkResult struct {
		status status.Status
		exists bool
	}
	results := make(chan checkResult, len(u.clients))
	for _, c := range u.clients {
		c := c
		go func() {
			cmd := rpc.NewGetKeyRangeCommand(rpc.Header{}, key, key, true, true, 1)
			res := c.RPC(cmd, nil, u.cfg.timeout()).Wait()
			if !res.Status.Ok() {
				results <- checkResult{status: res.Status}
				return
			}
			exists := res.Reply != nil && res.Reply.Range != nil && len(res.Reply.Range.Keys) > 0
			results <- checkResult{status: status.Ok(), exists: exists}
		}()
	}

	for range u.clients {
		r := <-results
		if !r.status.Ok() {
			return r.status
		}
		if r.exists {
			return status.New(status.Already, "stripe: manifest %s already exists", u.chunkID)
		}
	}

	u.EnterPrepared()
	return status.Ok()
}

// Write buffers bytes, flushing one full block per Config.BlockSize
// (DefaultBlockSize when unset) worth of accumulated data.
func (u *Upload) Write(s *slice.Slice) status.Status {
	if st := u.RequireWrite(); !st.Ok() {
		return st
	}
	u.buf = append(u.buf, s.Bytes()...)

	block := u.cfg.blockSize()
	for len(u.buf) >= block {
		if st := u.flush(u.buf[:block]); !st.Ok() {
			return st
		}
		u.buf = u.buf[block:]
	}
	return status.Ok()
}

func (u *Upload) flush(data []byte) status.Status {
	drive := u.next % len(u.clients)
	u.next++

	key := blockKey(u.chunkID, u.seq, len(data))
	u.seq++

	body := append([]byte(nil), data...)
	cmd := rpc.NewPutCommand(rpc.Header{}, []byte(key), nil, nil, nil, u.cfg.Synchronize)
	exchange := u.clients[drive].RPC(cmd, body, u.cfg.timeout())

	u.pending = append(u.pending, pendingPut{key: key, drive: drive, exchange: exchange})
	return status.Ok()
}

// Commit flushes any final partial block and waits for every pending
// data-block PUT; only once all of them succeeded does it serialise the
// xattr map as the manifest object, PUT it to the next drive and wait
// for that PUT. Success iff every PUT's status was OK.
func (u *Upload) Commit() status.Status {
	if st := u.RequireTerminal(); !st.Ok() {
		return st
	}
	defer u.EnterDone()

	if len(u.buf) > 0 {
		if st := u.flush(u.buf); !st.Ok() {
			return st
		}
		u.buf = nil
	}

	for _, p := range u.pending {
		res := p.exchange.Wait()
		if !res.Status.Ok() {
			return status.New(res.Status.Cause, "stripe: put %s on drive %d: %s", p.key, p.drive, res.Status.Explanation)
		}
	}

	manifest, err := json.Marshal(u.xattrs)
	if err != nil {
		return status.New(status.InternalError, "stripe: marshal manifest: %v", err)
	}

	drive := u.next % len(u.clients)
	u.next++
	key := manifestKey(u.chunkID)
	cmd := rpc.NewPutCommand(rpc.Header{}, []byte(key), nil, nil, nil, u.cfg.Synchronize)
	manifestExchange := u.clients[drive].RPC(cmd, manifest, u.cfg.timeout())
	u.pending = append(u.pending, pendingPut{key: key, drive: drive, exchange: manifestExchange})

	if res := manifestExchange.Wait(); !res.Status.Ok() {
		return status.New(res.Status.Cause, "stripe: put %s on drive %d: %s", key, drive, res.Status.Explanation)
	}
	return status.Ok()
}

// Abort waits for every in-flight PUT, then best-effort deletes every
// block (including any committed manifest) it issued.
func (u *Upload) Abort() status.Status {
	if u.State() == blob.StateDone {
		return status.New(status.InternalError, "stripe: abort called in state Done")
	}
	defer u.EnterDone()

	for _, p := range u.pending {
		p.exchange.Wait()
	}

	worst := status.Ok()
	for _, p := range u.pending {
		cmd := rpc.NewDeleteCommand(rpc.Header{}, []byte(p.key), false)
		res := u.clients[p.drive].RPC(cmd, nil, u.cfg.timeout()).Wait()
		if !res.Status.Ok() && res.Status.Cause != status.NotFound {
			worst = status.Worst(worst, res.Status)
		}
	}
	return worst
}
