package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oio-go/blobkit/internal/logger"
	"github.com/oio-go/blobkit/internal/telemetry"
	"github.com/oio-go/blobkit/kinetic/rpc"
	"github.com/oio-go/blobkit/status"
)

// sweepInterval is how often the deadline sweeper scans the pending
// table for expired exchanges.
const sweepInterval = 25 * time.Millisecond

// DefaultTimeout is the exchange deadline used when RPC's caller
// doesn't specify one (spec.md §4.4: "absolute deadline (default 30 s)").
const DefaultTimeout = 30 * time.Second

// submission is one request queued for the producer goroutine.
type submission struct {
	cmd   *rpc.Command
	value []byte
	pe    *PendingExchange
}

// Client is a Kinetic coroutine client: one TCP connection to one
// drive, multiplexing many concurrent exchanges (spec.md §4.4). A
// Client is safe for concurrent use by multiple callers.
type Client struct {
	conn         net.Conn
	addr         string
	ctx          *Context
	maxFrameSize uint32

	submissions chan submission

	mu      sync.Mutex
	pending map[int64]*PendingExchange
	closed  bool

	stop         chan struct{}
	teardownOnce sync.Once
	wg           sync.WaitGroup
}

// Dial connects to addr and starts the client's producer, consumer, and
// deadline-sweeper goroutines. clusterVersion and identity are carried
// on every frame's header/auth; secret is the drive's HMAC key.
func Dial(addr string, clusterVersion, identity int64, secret []byte, maxFrameSize uint32) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("kinetic/client: dial %s: %w", addr, err)
	}
	return New(conn, addr, clusterVersion, identity, secret, maxFrameSize), nil
}

// New wraps an already-connected conn in a Client. ConnectionID is fixed
// here at construction time, standing in for the spec's "monotonic
// timestamp fixed at the first successful handshake" (this module has
// no separate handshake exchange).
func New(conn net.Conn, addr string, clusterVersion, identity int64, secret []byte, maxFrameSize uint32) *Client {
	c := &Client{
		conn:         conn,
		addr:         addr,
		maxFrameSize: maxFrameSize,
		submissions:  make(chan submission, 64),
		pending:      make(map[int64]*PendingExchange),
		stop:         make(chan struct{}),
		ctx: &Context{
			ClusterVersion: clusterVersion,
			ConnectionID:   time.Now().UnixNano(),
			Identity:       identity,
			SharedSecret:   secret,
		},
	}

	c.wg.Add(3)
	go c.produce()
	go c.consume()
	go c.sweep()

	return c
}

// RPC enqueues cmd for submission and returns a handle the caller Waits
// on. timeout is the exchange's absolute deadline window; zero means
// DefaultTimeout. RPC itself never blocks on the network (spec.md §4.4:
// "RPC returns immediately").
func (c *Client) RPC(cmd *rpc.Command, value []byte, timeout time.Duration) *PendingExchange {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	pe := newPendingExchange(0, time.Now().Add(timeout))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		pe.complete(Result{Status: status.New(status.NetworkError, "kinetic/client: client closed")})
		return pe
	}
	c.mu.Unlock()

	select {
	case c.submissions <- submission{cmd: cmd, value: value, pe: pe}:
	case <-c.stop:
		pe.complete(Result{Status: status.New(status.NetworkError, "kinetic/client: client closed")})
	}
	return pe
}

// Closed reports whether the client has torn itself down, either via
// an explicit Close or because consume() hit a protocol error on the
// wire (spec.md §4.4: "Protocol errors... tear down the connection.
// The client is then re-usable only after external reconnection").
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears the client down: cancels all outstanding exchanges with
// NetworkError, stops the background goroutines, and closes the socket
// (spec.md §5 "Closing the client cancels all outstanding exchanges").
func (c *Client) Close() error {
	err := c.teardown(status.New(status.NetworkError, "kinetic/client: client closed"))
	c.wg.Wait()
	return err
}

// teardown marks the client closed, stops produce/sweep, and closes
// the socket exactly once; safe to call from Close and from consume's
// own degrade path. Always fails any exchanges still pending.
func (c *Client) teardown(st status.Status) error {
	var err error
	c.teardownOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.stop)
		err = c.conn.Close()
	})
	c.failAllOutstanding(st)
	return err
}

func (c *Client) produce() {
	defer c.wg.Done()
	for {
		select {
		case sub := <-c.submissions:
			c.send(sub)
		case <-c.stop:
			return
		}
	}
}

func (c *Client) send(sub submission) {
	seq := c.ctx.NextSequence()
	sub.pe.SequenceID = seq
	sub.cmd.Header.Sequence = seq
	sub.cmd.Header.ClusterVersion = c.ctx.ClusterVersion
	sub.cmd.Header.ConnectionID = c.ctx.ConnectionID

	ctx, span := telemetry.StartSpan(context.Background(), "kinetic.rpc",
		trace.WithAttributes(attribute.Int64("kinetic.sequence", seq), attribute.String("kinetic.drive", c.addr)))
	defer span.End()

	c.mu.Lock()
	c.pending[seq] = sub.pe
	c.mu.Unlock()

	msgBytes := rpc.EncodeRequest(c.ctx.SharedSecret, c.ctx.Identity, sub.cmd)
	if err := rpc.WriteFrame(c.conn, msgBytes, sub.value); err != nil {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		sub.pe.complete(Result{Status: status.New(status.NetworkError, "kinetic/client: write: %v", err)})
		telemetry.RecordError(ctx, err)
		logger.Warn("kinetic write failed, client degraded",
			logger.Drive(c.addr), logger.SeqID(uint64(seq)), logger.Err(err))
	}
}

func (c *Client) consume() {
	defer c.wg.Done()
	for {
		msgBytes, value, st := rpc.ReadFrame(c.conn, c.maxFrameSize)
		if !st.Ok() {
			c.degrade(st)
			return
		}

		cmd, dst := rpc.DecodeReply(c.ctx.SharedSecret, msgBytes)
		if !dst.Ok() {
			c.degrade(dst)
			return
		}

		c.mu.Lock()
		pe, ok := c.pending[cmd.Header.Sequence]
		if ok {
			delete(c.pending, cmd.Header.Sequence)
		}
		c.mu.Unlock()

		if !ok {
			logger.Warn("kinetic reply for unknown sequence dropped",
				logger.Drive(c.addr), logger.SeqID(uint64(cmd.Header.Sequence)))
			continue
		}

		pe.complete(Result{
			Status: cmd.Status.Code.ToStatus(cmd.Status.DetailMessage),
			Reply:  cmd,
			Value:  value,
		})
	}
}

func (c *Client) sweep() {
	defer c.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Client) evictExpired() {
	now := time.Now()
	var expired []*PendingExchange

	c.mu.Lock()
	for seq, pe := range c.pending {
		if now.After(pe.Deadline) {
			expired = append(expired, pe)
			delete(c.pending, seq)
		}
	}
	c.mu.Unlock()

	for _, pe := range expired {
		pe.complete(Result{Status: status.New(status.NetworkError, "kinetic/client: exchange %d timed out", pe.SequenceID)})
	}
}

// degrade tears the connection down from inside consume() itself:
// protocol errors on the wire leave the client unusable until a
// factory redials it (spec.md §4.4). Unlike Close, it does not wait
// on c.wg since consume() is the caller and hasn't returned yet.
func (c *Client) degrade(st status.Status) {
	_ = c.teardown(st)
	logger.Warn("kinetic client degraded, connection torn down",
		logger.Drive(c.addr), logger.Err(fmt.Errorf("%s", st.Explanation)))
}

func (c *Client) failAllOutstanding(st status.Status) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int64]*PendingExchange)
	c.mu.Unlock()

	for _, pe := range pending {
		pe.complete(Result{Status: st})
	}
}
