package client

import (
	"net"
	"testing"
	"time"

	"github.com/oio-go/blobkit/internal/kinetictest"
	"github.com/oio-go/blobkit/kinetic/rpc"
	"github.com/oio-go/blobkit/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTCP(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	return conn
}

func dial(t *testing.T) (*Client, *kinetictest.Drive) {
	t.Helper()
	drive, err := kinetictest.New()
	require.NoError(t, err)
	t.Cleanup(drive.Close)

	c := New(dialTCP(t, drive.Addr()), drive.Addr(), 1, 1, kinetictest.Secret, 1<<20)
	t.Cleanup(func() { _ = c.Close() })
	return c, drive
}

func TestPutGetRoundTrip(t *testing.T) {
	c, _ := dial(t)

	putCmd := rpc.NewPutCommand(rpc.Header{}, []byte("chunk-0-5"), []byte("tag"), nil, nil, true)
	pe := c.RPC(putCmd, []byte("hello"), time.Second)
	res := pe.Wait()
	require.True(t, res.Status.Ok())

	getCmd := rpc.NewGetCommand(rpc.Header{}, []byte("chunk-0-5"))
	pe = c.RPC(getCmd, nil, time.Second)
	res = pe.Wait()
	require.True(t, res.Status.Ok())
	assert.Equal(t, "hello", string(res.Value))
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	c, _ := dial(t)

	getCmd := rpc.NewGetCommand(rpc.Header{}, []byte("does-not-exist"))
	pe := c.RPC(getCmd, nil, time.Second)
	res := pe.Wait()
	assert.Equal(t, status.NotFound, res.Status.Cause)
}

func TestSequenceIDsAreMonotonic(t *testing.T) {
	c, _ := dial(t)

	var pes []*PendingExchange
	for i := 0; i < 5; i++ {
		cmd := rpc.NewPutCommand(rpc.Header{}, []byte("k"), nil, nil, nil, false)
		pe := c.RPC(cmd, []byte("v"), time.Second)
		pes = append(pes, pe)
	}
	for _, pe := range pes {
		res := pe.Wait()
		require.True(t, res.Status.Ok())
	}

	for i := 1; i < len(pes); i++ {
		assert.Greater(t, pes[i].SequenceID, pes[i-1].SequenceID)
	}
}

func TestRPCTimeoutAgainstUnresponsiveDrive(t *testing.T) {
	drive, err := kinetictest.New()
	require.NoError(t, err)
	defer drive.Close()
	drive.Latency = func() { time.Sleep(500 * time.Millisecond) }

	c := New(dialTCP(t, drive.Addr()), drive.Addr(), 1, 1, kinetictest.Secret, 1<<20)
	defer c.Close()

	cmd := rpc.NewPutCommand(rpc.Header{}, []byte("slow-key"), nil, nil, nil, false)
	pe := c.RPC(cmd, []byte("v"), 100*time.Millisecond)

	start := time.Now()
	res := pe.Wait()
	elapsed := time.Since(start)

	assert.Equal(t, status.NetworkError, res.Status.Cause)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestCloseFailsOutstandingExchanges(t *testing.T) {
	drive, err := kinetictest.New()
	require.NoError(t, err)
	defer drive.Close()
	drive.Latency = func() { time.Sleep(time.Second) }

	c := New(dialTCP(t, drive.Addr()), drive.Addr(), 1, 1, kinetictest.Secret, 1<<20)

	cmd := rpc.NewPutCommand(rpc.Header{}, []byte("k"), nil, nil, nil, false)
	pe := c.RPC(cmd, []byte("v"), 5*time.Second)

	require.NoError(t, c.Close())

	res := pe.Wait()
	assert.Equal(t, status.NetworkError, res.Status.Cause)
}
