package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oio-go/blobkit/slice"
	"github.com/oio-go/blobkit/status"
)

func tempPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "nested", "chunk-0")
}

func TestUploadCommitRoundTrip(t *testing.T) {
	path := tempPath(t)
	cfg := DefaultConfig()

	u := NewUpload(path, cfg)
	require.True(t, u.SetXattr("chunk-id", "ABCDEF").Ok())
	require.True(t, u.Prepare().Ok())
	require.True(t, u.Write(slice.FromBytes([]byte("hello "))).Ok())
	require.True(t, u.Write(slice.FromBytes([]byte("world"))).Ok())
	require.True(t, u.Commit().Ok())

	_, err := os.Stat(path + ".pending")
	assert.True(t, os.IsNotExist(err))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	d := NewDownload(path, cfg)
	require.True(t, d.Prepare().Ok())
	s := slice.New()
	for !d.IsEof() {
		require.True(t, d.Read(s).Ok())
	}
	assert.Equal(t, "hello world", string(s.Bytes()))
}

func TestUploadAbortRemovesPendingFile(t *testing.T) {
	path := tempPath(t)
	u := NewUpload(path, DefaultConfig())

	require.True(t, u.Prepare().Ok())
	require.True(t, u.Write(slice.FromBytes([]byte("partial"))).Ok())
	require.True(t, u.Abort().Ok())

	_, err := os.Stat(path + ".pending")
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadMissingFileReturnsNotFound(t *testing.T) {
	path := tempPath(t)
	d := NewDownload(path, DefaultConfig())

	st := d.Prepare()
	assert.False(t, st.Ok())
	assert.Equal(t, status.NotFound, st.Cause)
}

func TestDownloadRangeReadsSubset(t *testing.T) {
	path := tempPath(t)
	cfg := DefaultConfig()

	u := NewUpload(path, cfg)
	require.True(t, u.Prepare().Ok())
	require.True(t, u.Write(slice.FromBytes([]byte("0123456789"))).Ok())
	require.True(t, u.Commit().Ok())

	d := NewDownload(path, cfg)
	require.True(t, d.SetRange(2, 3).Ok())
	require.True(t, d.Prepare().Ok())

	s := slice.New()
	for !d.IsEof() {
		require.True(t, d.Read(s).Ok())
	}
	assert.Equal(t, "234", string(s.Bytes()))
}

func TestRemovalDeletesFile(t *testing.T) {
	path := tempPath(t)
	cfg := DefaultConfig()

	u := NewUpload(path, cfg)
	require.True(t, u.Prepare().Ok())
	require.True(t, u.Commit().Ok())

	r := NewRemoval(path)
	require.True(t, r.Prepare().Ok())
	require.True(t, r.Commit().Ok())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRemovalMissingFileReturnsNotFound(t *testing.T) {
	path := tempPath(t)
	r := NewRemoval(path)

	st := r.Prepare()
	assert.False(t, st.Ok())
	assert.Equal(t, status.NotFound, st.Cause)
}
