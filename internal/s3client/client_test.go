package s3client

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetObject(t *testing.T) {
	c := TestClient(t, "artifacts")
	ctx := context.Background()

	png := []byte("\x89PNG\r\n\x1a\nfake")
	require.NoError(t, c.PutObject(ctx, "runs/r1/login-chromium-desktop-1.png", png, "image/png"))

	got, err := c.GetObject(ctx, "runs/r1/login-chromium-desktop-1.png")
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestGetObject_NotFound(t *testing.T) {
	c := TestClient(t, "artifacts")

	_, err := c.GetObject(context.Background(), "runs/missing.png")
	assert.True(t, errors.Is(err, ErrObjectNotFound), "got %v", err)
}

func TestListKeys_FiltersByPrefix(t *testing.T) {
	c := TestClient(t, "artifacts")
	ctx := context.Background()

	for _, key := range []string{"runs/a/one.png", "runs/a/two.png", "runs/b/three.png"} {
		require.NoError(t, c.PutObject(ctx, key, []byte(key), "image/png"))
	}

	keys, err := c.ListKeys(ctx, "runs/a/")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"runs/a/one.png", "runs/a/two.png"}, keys)
}

func TestObjectURL(t *testing.T) {
	c := NewFromS3Client(nil, "artifacts", "https://s3.example.test/artifacts/")
	assert.Equal(t, "https://s3.example.test/artifacts/runs/x.png", c.ObjectURL("/runs/x.png"))
	assert.Equal(t, "artifacts", c.BucketName())

	assert.Empty(t, NewFromS3Client(nil, "artifacts", "").ObjectURL("runs/x.png"))
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestNew_BuildsPathStyleURL(t *testing.T) {
	c, err := New(context.Background(), Config{
		Endpoint:        "https://minio.example.test/",
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "runs",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://minio.example.test/runs/a.png", c.ObjectURL("a.png"))
}
