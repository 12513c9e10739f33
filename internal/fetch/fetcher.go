package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/video-captioner/pkg/log"
)

// Fetcher downloads a remote source to local disk.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// HTTPFetcher streams downloads into a temp directory under a random name.
type HTTPFetcher struct {
	client  *http.Client
	tempDir string
}

type Option func(*HTTPFetcher)

func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

func NewHTTPFetcher(tempDir string, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:  &http.Client{Timeout: 30 * time.Minute},
		tempDir: tempDir,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("unsupported source url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download %s: unexpected status %s", rawURL, resp.Status)
	}

	if err := os.MkdirAll(f.tempDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(f.tempDir, uuid.NewString()+extension(u))
	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}

	start := time.Now()
	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(dest)
		if copyErr != nil {
			return "", fmt.Errorf("download %s: %w", rawURL, copyErr)
		}
		return "", closeErr
	}

	log.Debug("Downloaded %s (%d bytes) to %s in %s", rawURL, written, dest, log.Since(start))
	return dest, nil
}

func extension(u *url.URL) string {
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || len(ext) > 6 {
		return ".mp4"
	}
	return ext
}
