package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueName(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "out_20260102_150405.mp4", uniqueName("/tmp/jobs/out.mp4", now))
	assert.Equal(t, "noext_20260102_150405", uniqueName("noext", now))
}

func TestLocalUploader_Upload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "storage")
	up, err := NewLocalUploader(dir, "http://media.example.com:8080/ignored/")
	require.NoError(t, err)
	up.now = func() time.Time { return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC) }

	src := filepath.Join(t.TempDir(), "final.mp4")
	require.NoError(t, os.WriteFile(src, []byte("video"), 0o644))

	got, err := up.Upload(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "http://media.example.com:8080/storage/final_20260102_150405.mp4", got)

	content, err := os.ReadFile(filepath.Join(dir, "final_20260102_150405.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "video", string(content))

	_, err = os.Stat(src)
	assert.NoError(t, err, "source is left for the caller to clean up")
}

func TestLocalUploader_MissingFile(t *testing.T) {
	up, err := NewLocalUploader(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	_, err = up.Upload(context.Background(), "/does/not/exist.mp4")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	up, err := New(context.Background(), Config{LocalDir: t.TempDir(), BaseURL: "http://localhost:8080"})
	require.NoError(t, err)
	assert.IsType(t, &LocalUploader{}, up)

	_, err = New(context.Background(), Config{Provider: "ftp"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Provider: "local", LocalDir: t.TempDir(), BaseURL: "not a url"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Provider: "s3"})
	assert.Error(t, err, "bucket is required")
}

func TestS3Uploader_ObjectURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{"aws", S3Config{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com/k.mp4"},
		{"endpoint", S3Config{Bucket: "b", Endpoint: "http://minio:9000/"}, "http://minio:9000/b/k.mp4"},
		{"public", S3Config{Bucket: "b", Endpoint: "http://minio:9000", PublicURL: "https://cdn.example.com/"}, "https://cdn.example.com/k.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &S3Uploader{cfg: tt.cfg}
			assert.Equal(t, tt.want, s.objectURL("k.mp4"))
		})
	}
}

func TestNewS3Uploader(t *testing.T) {
	up, err := NewS3Uploader(context.Background(), S3Config{
		Bucket:    "captions",
		Endpoint:  "http://localhost:9000",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", up.cfg.Region)
	assert.Equal(t, "video/mp4", contentType("a.MP4"))
}
