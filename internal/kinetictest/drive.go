// Package kinetictest starts an in-process fake Kinetic drive: a raw TCP
// listener that speaks the frame/Command/HMAC protocol from kinetic/rpc,
// for kinetic/client and backend/kvdrive's round-trip tests.
package kinetictest

import (
	"net"
	"sync"

	"github.com/oio-go/blobkit/kinetic/rpc"
)

// Secret is the shared HMAC secret every Drive uses, fixed so tests
// don't need to thread it through.
var Secret = []byte("kinetictest-shared-secret")

// Drive is a fake Kinetic server: it accepts any number of TCP
// connections, serving each on its own goroutine, and answers
// PUT/GET/GETNEXT/GETKEYRANGE/DELETE/GETLOG against one in-memory key
// space shared by all of them.
type Drive struct {
	listener net.Listener

	mu     sync.Mutex
	values map[string][]byte

	// Latency, when set, is called before every reply is sent, so a
	// func that sleeps delays each reply; used to exercise RPC
	// timeout/deadline eviction in kinetic/client tests.
	Latency func()

	// DropSequences, when set, causes the drive to silently discard
	// the reply for the given sequence numbers instead of answering
	// (simulating a request whose reply never arrives).
	DropSequences map[int64]bool

	closed chan struct{}
}

// New starts a fake drive listening on an ephemeral local port.
func New() (*Drive, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	d := &Drive{
		listener: ln,
		values:   make(map[string][]byte),
		closed:   make(chan struct{}),
	}
	go d.acceptLoop()
	return d, nil
}

// Addr is the "host:port" the drive listens on.
func (d *Drive) Addr() string {
	return d.listener.Addr().String()
}

// Close stops accepting connections and releases the listener.
func (d *Drive) Close() {
	select {
	case <-d.closed:
		return
	default:
		close(d.closed)
	}
	_ = d.listener.Close()
}

func (d *Drive) acceptLoop() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		go d.serveConn(conn)
	}
}

func (d *Drive) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		msgBytes, value, st := rpc.ReadFrame(conn, 8<<20)
		if !st.Ok() {
			return
		}
		cmd, derr := rpc.DecodeReply(Secret, msgBytes)
		if !derr.Ok() {
			return
		}

		if d.Latency != nil {
			d.Latency()
		}
		if d.DropSequences[cmd.Header.Sequence] {
			continue
		}

		reply := d.handle(cmd, value)
		replyBytes := rpc.EncodeRequest(Secret, 1, reply.cmd)
		if err := rpc.WriteFrame(conn, replyBytes, reply.value); err != nil {
			return
		}
	}
}

type reply struct {
	cmd   *rpc.Command
	value []byte
}

func (d *Drive) handle(cmd *rpc.Command, value []byte) reply {
	h := cmd.Header

	switch h.MessageType {
	case rpc.TypePut:
		d.mu.Lock()
		d.values[string(cmd.KeyValue.Key)] = append([]byte(nil), value...)
		d.mu.Unlock()
		return reply{cmd: rpc.NewStatusReply(h, rpc.StatusSuccess, "")}

	case rpc.TypeGet:
		d.mu.Lock()
		v, ok := d.values[string(cmd.KeyValue.Key)]
		d.mu.Unlock()
		if !ok {
			return reply{cmd: rpc.NewStatusReply(h, rpc.StatusNotFound, "no such key")}
		}
		r := rpc.NewStatusReply(h, rpc.StatusSuccess, "")
		r.KeyValue = &rpc.KeyValueBody{Key: cmd.KeyValue.Key}
		return reply{cmd: r, value: v}

	case rpc.TypeGetNext:
		d.mu.Lock()
		defer d.mu.Unlock()
		next, ok := d.nextKeyLocked(string(cmd.KeyValue.Key))
		if !ok {
			return reply{cmd: rpc.NewStatusReply(h, rpc.StatusNotFound, "no next key")}
		}
		r := rpc.NewStatusReply(h, rpc.StatusSuccess, "")
		r.KeyValue = &rpc.KeyValueBody{Key: []byte(next)}
		return reply{cmd: r}

	case rpc.TypeGetKeyRange:
		d.mu.Lock()
		keys := d.rangeKeysLocked(cmd.Range)
		d.mu.Unlock()
		r := rpc.NewStatusReply(h, rpc.StatusSuccess, "")
		r.Range = &rpc.RangeBody{Keys: toByteSlices(keys)}
		return reply{cmd: r}

	case rpc.TypeDelete:
		d.mu.Lock()
		_, ok := d.values[string(cmd.KeyValue.Key)]
		delete(d.values, string(cmd.KeyValue.Key))
		d.mu.Unlock()
		if !ok {
			return reply{cmd: rpc.NewStatusReply(h, rpc.StatusNotFound, "no such key")}
		}
		return reply{cmd: rpc.NewStatusReply(h, rpc.StatusSuccess, "")}

	case rpc.TypeGetLog:
		r := rpc.NewStatusReply(h, rpc.StatusSuccess, "")
		r.GetLog = &rpc.GetLogBody{
			Types:              cmd.GetLog.Types,
			CPUPercent:         5,
			TemperatureCelsius: 35,
			SpaceFreePercent:   90,
			IOPercent:          2,
		}
		return reply{cmd: r}

	default:
		return reply{cmd: rpc.NewStatusReply(h, rpc.StatusInvalidRequest, "unknown message type")}
	}
}

// nextKeyLocked returns the smallest stored key strictly greater than
// key, d.mu must be held.
func (d *Drive) nextKeyLocked(key string) (string, bool) {
	best := ""
	found := false
	for k := range d.values {
		if k > key && (!found || k < best) {
			best, found = k, true
		}
	}
	return best, found
}

// rangeKeysLocked returns stored keys within r's window in ascending
// order, d.mu must be held.
func (d *Drive) rangeKeysLocked(r *rpc.RangeBody) []string {
	var keys []string
	for k := range d.values {
		if inRange(k, r) {
			keys = append(keys, k)
		}
	}
	sortStrings(keys)
	if r.MaxReturned > 0 && int32(len(keys)) > r.MaxReturned {
		keys = keys[:r.MaxReturned]
	}
	return keys
}

func inRange(key string, r *rpc.RangeBody) bool {
	if len(r.StartKey) > 0 {
		if r.StartKeyInclusive {
			if key < string(r.StartKey) {
				return false
			}
		} else if key <= string(r.StartKey) {
			return false
		}
	}
	if len(r.EndKey) > 0 {
		if r.EndKeyInclusive {
			if key > string(r.EndKey) {
				return false
			}
		} else if key >= string(r.EndKey) {
			return false
		}
	}
	return true
}

func toByteSlices(keys []string) [][]byte {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
