// Package factory owns the mapping from Kinetic service URL to shared
// multiplexed client, the "client factory" of spec.md §5 ("Shared
// resources"): creation is idempotent, and a degraded client — torn
// down by a protocol error on its own connection — is transparently
// redialed on the next Get instead of handed back stale.
package factory

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oio-go/blobkit/internal/logger"
	"github.com/oio-go/blobkit/kinetic/client"
)

// Factory dials and caches one *client.Client per service address.
// Safe for concurrent use.
type Factory struct {
	clients sync.Map // addr string -> *client.Client

	clusterVersion int64
	identity       int64
	secret         []byte
	maxFrameSize   uint32
	dialTimeout    time.Duration
}

// Option configures a Factory at construction time.
type Option func(*Factory)

// WithDialTimeout overrides the default dial timeout (5s).
func WithDialTimeout(d time.Duration) Option {
	return func(f *Factory) { f.dialTimeout = d }
}

// New builds a Factory dialing with the given cluster identity and
// HMAC secret; maxFrameSize bounds every client's read/write frames.
func New(clusterVersion, identity int64, secret []byte, maxFrameSize uint32, opts ...Option) *Factory {
	f := &Factory{
		clusterVersion: clusterVersion,
		identity:       identity,
		secret:         secret,
		maxFrameSize:   maxFrameSize,
		dialTimeout:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get returns the shared client for addr, dialing it on first use and
// redialing it if the previously cached client degraded (spec.md §4.4:
// "re-usable only after external reconnection (handled by the
// factory)").
func (f *Factory) Get(addr string) (*client.Client, error) {
	if v, ok := f.clients.Load(addr); ok {
		c := v.(*client.Client)
		if !c.Closed() {
			return c, nil
		}
		logger.Warn("kinetic factory redialing degraded client", logger.Drive(addr))
	}

	c, err := f.dial(addr)
	if err != nil {
		return nil, err
	}

	actual, loaded := f.clients.LoadOrStore(addr, c)
	if loaded {
		existing := actual.(*client.Client)
		if !existing.Closed() {
			// Another caller won the race and already has a live
			// client; drop the one we just dialed.
			_ = c.Close()
			return existing, nil
		}
		f.clients.Store(addr, c)
	}
	return c, nil
}

func (f *Factory) dial(addr string) (*client.Client, error) {
	conn, err := net.DialTimeout("tcp", addr, f.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("kinetic/factory: dial %s: %w", addr, err)
	}
	c := client.New(conn, addr, f.clusterVersion, f.identity, f.secret, f.maxFrameSize)
	logger.Info("kinetic factory dialed client", logger.Drive(addr))
	return c, nil
}

// Close tears down every client the factory has ever handed out.
func (f *Factory) Close() {
	f.clients.Range(func(key, value any) bool {
		c := value.(*client.Client)
		_ = c.Close()
		f.clients.Delete(key)
		return true
	})
}

// Addrs returns the service addresses currently cached, for
// diagnostics and tests.
func (f *Factory) Addrs() []string {
	var addrs []string
	f.clients.Range(func(key, _ any) bool {
		addrs = append(addrs, key.(string))
		return true
	})
	return addrs
}
