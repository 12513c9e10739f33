package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceExt(t *testing.T) {
	tests := []struct {
		path string
		ext  string
		want string
	}{
		{path: "/out/video.mp4", ext: ".srt", want: "/out/video.srt"},
		{path: "/out/video.mp4", ext: "srt", want: "/out/video.srt"},
		{path: "/out/video", ext: ".srt", want: "/out/video.srt"},
		{path: "/out/.hidden", ext: ".srt", want: "/out/.hidden.srt"},
		{path: "", ext: ".srt", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReplaceExt(tt.path, tt.ext), tt.path)
	}
}

func TestWithSuffix(t *testing.T) {
	assert.Equal(t, "out/video_captioned.mp4", WithSuffix("out/video.mp4", "_captioned"))
	assert.Equal(t, "video_1", WithSuffix("video", "_1"))
	assert.Equal(t, ".env_1", WithSuffix(".env", "_1"))
	assert.Equal(t, "", WithSuffix("", "_1"))
}

func TestFindOlderThan(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.mp4")
	newPath := filepath.Join(dir, "nested", "new.mp4")
	require.NoError(t, os.MkdirAll(filepath.Dir(newPath), 0o755))
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(newPath, []byte("x"), 0o644))

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	got, err := FindOlderThan(dir, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{oldPath}, got)
}

func TestFindOlderThan_MissingDir(t *testing.T) {
	got, err := FindOlderThan(filepath.Join(t.TempDir(), "absent"), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}
