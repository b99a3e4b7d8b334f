package memcache

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oio-go/blobkit/slice"
	"github.com/oio-go/blobkit/status"
)

func TestUploadCommitMakesEntryVisible(t *testing.T) {
	c := New()
	u := NewUpload(c, "chunk-0")
	require.True(t, u.Prepare().Ok())
	require.True(t, u.Write(slice.FromBytes([]byte("hello"))).Ok())
	require.True(t, u.Commit().Ok())

	d := NewDownload(c, "chunk-0")
	require.True(t, d.Prepare().Ok())
	s := slice.New()
	require.True(t, d.Read(s).Ok())
	assert.Equal(t, "hello", string(s.Bytes()))
}

func TestPendingEntryNotVisibleUntilCommit(t *testing.T) {
	c := New()
	u := NewUpload(c, "chunk-1")
	require.True(t, u.Prepare().Ok())
	require.True(t, u.Write(slice.FromBytes([]byte("partial"))).Ok())

	d := NewDownload(c, "chunk-1")
	st := d.Prepare()
	assert.False(t, st.Ok())
	assert.Equal(t, status.NotFound, st.Cause)

	require.True(t, u.Abort().Ok())
	d2 := NewDownload(c, "chunk-1")
	st2 := d2.Prepare()
	assert.Equal(t, status.NotFound, st2.Cause)
}

func TestRemovalDeletesEntry(t *testing.T) {
	c := New()
	u := NewUpload(c, "chunk-2")
	require.True(t, u.Prepare().Ok())
	require.True(t, u.Commit().Ok())

	r := NewRemoval(c, "chunk-2")
	require.True(t, r.Prepare().Ok())
	require.True(t, r.Commit().Ok())

	d := NewDownload(c, "chunk-2")
	st := d.Prepare()
	assert.Equal(t, status.NotFound, st.Cause)
}

func TestListingEnumeratesPrefix(t *testing.T) {
	c := New()
	for _, name := range []string{"share1/a", "share1/b", "share2/c"} {
		u := NewUpload(c, name)
		require.True(t, u.Prepare().Ok())
		require.True(t, u.Commit().Ok())
	}

	l := NewListing(c, "share1/", "svc-1")
	require.True(t, l.Prepare().Ok())

	var got []string
	for {
		id, key, ok := l.Next()
		if !ok {
			break
		}
		assert.Equal(t, "svc-1", id)
		got = append(got, key)
	}
	sort.Strings(got)
	assert.Equal(t, []string{"share1/a", "share1/b"}, got)
}

func TestDurableRoundTrip(t *testing.T) {
	d, err := OpenDurable(t.TempDir())
	require.NoError(t, err)
	defer d.Close()

	u := NewUpload(d, "chunk-0")
	require.True(t, u.Prepare().Ok())
	require.True(t, u.Write(slice.FromBytes([]byte("durable"))).Ok())
	require.True(t, u.Commit().Ok())

	down := NewDownload(d, "chunk-0")
	require.True(t, down.Prepare().Ok())
	s := slice.New()
	require.True(t, down.Read(s).Ok())
	assert.Equal(t, "durable", string(s.Bytes()))

	r := NewRemoval(d, "chunk-0")
	require.True(t, r.Prepare().Ok())
	require.True(t, r.Commit().Ok())

	down2 := NewDownload(d, "chunk-0")
	st := down2.Prepare()
	assert.Equal(t, status.NotFound, st.Cause)
}
