package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// Uploader publishes a finished artifact and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

type Config struct {
	Provider string
	LocalDir string
	BaseURL  string
	S3       S3Config
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicURL, when set, replaces the endpoint/bucket prefix of returned URLs.
	PublicURL string
}

// New builds the uploader selected by cfg.Provider.
func New(ctx context.Context, cfg Config) (Uploader, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderLocal:
		return NewLocalUploader(cfg.LocalDir, cfg.BaseURL)
	case ProviderS3:
		return NewS3Uploader(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// uniqueName appends a second-resolution timestamp to the base name,
// e.g. out.mp4 -> out_20260102_150405.mp4.
func uniqueName(path string, now time.Time) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return name + "_" + now.Format("20060102_150405") + ext
}
