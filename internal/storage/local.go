package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/MimeLyc/video-captioner/pkg/log"
)

// LocalUploader copies artifacts into a directory served under /storage/.
type LocalUploader struct {
	dir     string
	baseURL *url.URL
	now     func() time.Time
}

func NewLocalUploader(dir, baseURL string) (*LocalUploader, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage directory is not set")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalUploader{dir: dir, baseURL: u, now: time.Now}, nil
}

func (l *LocalUploader) Dir() string {
	return l.dir
}

func (l *LocalUploader) Upload(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	name := uniqueName(path, l.now())
	dest := filepath.Join(l.dir, name)
	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dest)
		return "", err
	}

	publicURL := l.baseURL.ResolveReference(&url.URL{Path: "/storage/" + name}).String()
	log.Info("File uploaded to local storage: %s", publicURL)
	return publicURL, nil
}
