package s3_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	backend "github.com/oio-go/blobkit/backend/s3"
	"github.com/oio-go/blobkit/internal/s3test"
	"github.com/oio-go/blobkit/slice"
	"github.com/oio-go/blobkit/status"
)

func newConfig(t *testing.T, server *s3test.Server, partSize int64) backend.Config {
	t.Helper()
	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(server.URL()),
		Region:       "us-east-1",
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test", "test", ""),
	})
	return backend.Config{Client: client, Bucket: "chunks", PartSize: partSize}
}

func TestUploadCommitSmallPayloadUsesPutObject(t *testing.T) {
	server := s3test.New()
	defer server.Close()
	cfg := newConfig(t, server, backend.DefaultPartSize)
	ctx := context.Background()

	u := backend.NewUpload(ctx, cfg, "chunk-0")
	require.True(t, u.Prepare().Ok())
	require.True(t, u.Write(slice.FromBytes([]byte("hello world"))).Ok())
	require.True(t, u.Commit().Ok())

	body, ok := server.Object("chunk-0")
	require.True(t, ok)
	assert.Equal(t, "hello world", string(body))
}

func TestUploadCommitLargePayloadUsesMultipart(t *testing.T) {
	server := s3test.New()
	defer server.Close()
	cfg := newConfig(t, server, 8)
	ctx := context.Background()

	u := backend.NewUpload(ctx, cfg, "chunk-1")
	require.True(t, u.Prepare().Ok())
	require.True(t, u.Write(slice.FromBytes(bytes.Repeat([]byte("a"), 10))).Ok())
	require.True(t, u.Write(slice.FromBytes(bytes.Repeat([]byte("b"), 10))).Ok())
	require.True(t, u.Commit().Ok())

	body, ok := server.Object("chunk-1")
	require.True(t, ok)
	assert.Equal(t, bytes.Repeat([]byte("a"), 10), body[:10])
	assert.Equal(t, bytes.Repeat([]byte("b"), 10), body[10:])
}

func TestDownloadRangeReadsSubset(t *testing.T) {
	server := s3test.New()
	defer server.Close()
	cfg := newConfig(t, server, backend.DefaultPartSize)
	ctx := context.Background()

	u := backend.NewUpload(ctx, cfg, "chunk-2")
	require.True(t, u.Prepare().Ok())
	require.True(t, u.Write(slice.FromBytes([]byte("0123456789"))).Ok())
	require.True(t, u.Commit().Ok())

	d := backend.NewDownload(ctx, cfg, "chunk-2")
	require.True(t, d.SetRange(2, 3).Ok())
	require.True(t, d.Prepare().Ok())

	s := slice.New()
	for !d.IsEof() {
		require.True(t, d.Read(s).Ok())
	}
	assert.Equal(t, "234", string(s.Bytes()))
}

func TestDownloadMissingKeyReturnsNotFound(t *testing.T) {
	server := s3test.New()
	defer server.Close()
	cfg := newConfig(t, server, backend.DefaultPartSize)
	ctx := context.Background()

	d := backend.NewDownload(ctx, cfg, "missing")
	st := d.Prepare()
	assert.False(t, st.Ok())
	assert.Equal(t, status.NotFound, st.Cause)
}

func TestRemovalDeletesObject(t *testing.T) {
	server := s3test.New()
	defer server.Close()
	cfg := newConfig(t, server, backend.DefaultPartSize)
	ctx := context.Background()

	u := backend.NewUpload(ctx, cfg, "chunk-3")
	require.True(t, u.Prepare().Ok())
	require.True(t, u.Commit().Ok())

	r := backend.NewRemoval(ctx, cfg, "chunk-3")
	require.True(t, r.Prepare().Ok())
	require.True(t, r.Commit().Ok())

	_, ok := server.Object("chunk-3")
	assert.False(t, ok)
}

func TestRemovalMissingObjectReturnsNotFound(t *testing.T) {
	server := s3test.New()
	defer server.Close()
	cfg := newConfig(t, server, backend.DefaultPartSize)
	ctx := context.Background()

	r := backend.NewRemoval(ctx, cfg, "missing")
	st := r.Prepare()
	assert.False(t, st.Ok())
	assert.Equal(t, status.NotFound, st.Cause)
}

func TestListingEnumeratesPrefix(t *testing.T) {
	server := s3test.New()
	defer server.Close()
	cfg := newConfig(t, server, backend.DefaultPartSize)
	ctx := context.Background()

	for _, name := range []string{"share1/a", "share1/b", "share2/c"} {
		u := backend.NewUpload(ctx, cfg, name)
		require.True(t, u.Prepare().Ok())
		require.True(t, u.Commit().Ok())
	}

	l := backend.NewListing(ctx, cfg, "share1/", "svc-1")
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
	assert.ElementsMatch(t, []string{"share1/a", "share1/b"}, got)
}
