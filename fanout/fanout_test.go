package fanout

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oio-go/blobkit/internal/kinetictest"
	"github.com/oio-go/blobkit/kinetic/client"
	"github.com/oio-go/blobkit/kinetic/rpc"
)

func dialDrives(t *testing.T, n int) []Drive {
	t.Helper()
	drives := make([]Drive, n)
	for i := 0; i < n; i++ {
		drive, err := kinetictest.New()
		require.NoError(t, err)
		t.Cleanup(drive.Close)

		conn, err := net.Dial("tcp", drive.Addr())
		require.NoError(t, err)

		c := client.New(conn, drive.Addr(), 1, 1, kinetictest.Secret, 1<<20)
		t.Cleanup(func() { _ = c.Close() })

		drives[i] = Drive{Client: c, ServiceID: drive.Addr()}
	}
	return drives
}

func put(t *testing.T, d Drive, key, value string) {
	t.Helper()
	cmd := rpc.NewPutCommand(rpc.Header{}, []byte(key), nil, nil, nil, false)
	res := d.Client.RPC(cmd, []byte(value), client.DefaultTimeout).Wait()
	require.True(t, res.Status.Ok())
}

func TestListingConcatenatesAcrossDrives(t *testing.T) {
	drives := dialDrives(t, 2)
	put(t, drives[0], "chunk-a-0-4", "aaaa")
	put(t, drives[0], "chunk-a-#", `{"k":"v"}`)
	put(t, drives[1], "chunk-a-1-4", "bbbb")

	l := NewListing(drives, "chunk-a")
	require.True(t, l.Prepare().Ok())

	var keys []string
	for {
		_, key, ok := l.Next()
		if !ok {
			break
		}
		keys = append(keys, key)
	}
	assert.ElementsMatch(t, []string{"chunk-a-0-4", "chunk-a-#", "chunk-a-1-4"}, keys)
}

func TestRemovalDeletesEveryPair(t *testing.T) {
	drives := dialDrives(t, 2)
	put(t, drives[0], "chunk-b-0-4", "aaaa")
	put(t, drives[1], "chunk-b-#", `{}`)

	l := NewListing(drives, "chunk-b")
	r := NewRemoval(l)
	require.True(t, r.Prepare().Ok())
	require.True(t, r.Commit().Ok())

	l2 := NewListing(drives, "chunk-b")
	require.True(t, l2.Prepare().Ok())
	_, _, ok := l2.Next()
	assert.False(t, ok)
}
