package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/video-captioner/internal/storage"
	"github.com/MimeLyc/video-captioner/pkg/log"
)

// ErrStorageNotWritable is returned when the local storage directory cannot
// be created or written to.
var ErrStorageNotWritable = errors.New("storage directory is not writable")

const dbFileName = "captioner.db"

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// HTTP:
// - HTTP_ADDR: listen address (default: :8080)
// - API_KEY: required X-API-Key header value; empty disables auth
// - BASE_URL: public base for local storage URLs (default: http://localhost:8080)
//
// Storage:
// - STORAGE_PROVIDER: local or s3 (default: local)
// - LOCAL_STORAGE_PATH: served under /storage/ (default: /var/www/storage)
// - TEMP_STORAGE_PATH: downloads and intermediate clips (default: /tmp)
// - S3_BUCKET, S3_REGION, S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY, S3_PUBLIC_URL
//
// Render:
// - FONT_DIR: font directory (default: /app/fonts)
// - DEFAULT_FONT: fallback font file (default: $FONT_DIR/Arial.ttf)
// - FFMPEG_PATH / FFPROBE_PATH: binaries (default: ffmpeg / ffprobe)
// - RENDER_CONCURRENCY: segments rendered at once per job (default: 2)
// - REPLACE_RULES_FILE: server-wide replacement rules (optional)
//
// System:
// - JOB_WORKERS: async job workers (default: 1)
// - DATA_DIR: sqlite directory (default: /app/data)
// - CLEANUP_CRON_EXPR: temp sweep schedule (default: 0 * * * *)
// - CLEANUP_MAX_AGE_HOURS: temp file age before removal (default: 24)
// - LOG_LEVEL / LOG_FORMAT: (default: info / console)
type Config struct {
	HTTP HTTPConfig `json:"http"`

	Storage StorageConfig `json:"storage"`

	Render RenderConfig `json:"render"`

	System SystemConfig `json:"system"`

	Cleanup CleanupConfig `json:"cleanup"`
}

type HTTPConfig struct {
	Addr    string `json:"addr"`
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url"`
}

type StorageConfig struct {
	Provider  string   `json:"provider"`
	LocalPath string   `json:"local_path"`
	TempPath  string   `json:"temp_path"`
	S3        S3Config `json:"s3"`
}

type S3Config struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
	PublicURL string `json:"public_url"`
}

type RenderConfig struct {
	FontDir           string `json:"font_dir"`
	DefaultFont       string `json:"default_font"`
	DefaultFontFamily string `json:"default_font_family"`
	FFmpegPath        string `json:"ffmpeg_path"`
	FFprobePath       string `json:"ffprobe_path"`
	Concurrency       int    `json:"concurrency"`
	ReplaceRulesFile  string `json:"replace_rules_file"`
}

type SystemConfig struct {
	DataDir    string `json:"data_dir"`
	JobWorkers int    `json:"job_workers"`
	LogLevel   string `json:"log_level"`
	LogFormat  string `json:"log_format"`
}

type CleanupConfig struct {
	CronExpr    string `json:"cron_expr"`
	MaxAgeHours int    `json:"max_age_hours"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// New loads ENV_FILE (or ./.env when present) into the environment without
// overriding variables that are already set, then reads the config.
func New(opts ...Option) (*Config, error) {
	envFile := getEnvString("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return NewFromEnv(opts...)
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	fontDir := getEnvString("FONT_DIR", "/app/fonts")
	config := &Config{
		HTTP: HTTPConfig{
			Addr:    getEnvString("HTTP_ADDR", ":8080"),
			APIKey:  getEnvString("API_KEY", ""),
			BaseURL: getEnvString("BASE_URL", "http://localhost:8080"),
		},
		Storage: StorageConfig{
			Provider:  strings.ToLower(getEnvString("STORAGE_PROVIDER", "local")),
			LocalPath: getEnvString("LOCAL_STORAGE_PATH", "/var/www/storage"),
			TempPath:  getEnvString("TEMP_STORAGE_PATH", "/tmp"),
			S3: S3Config{
				Bucket:    getEnvString("S3_BUCKET", ""),
				Region:    getEnvString("S3_REGION", "us-east-1"),
				Endpoint:  getEnvString("S3_ENDPOINT", ""),
				AccessKey: getEnvString("S3_ACCESS_KEY", ""),
				SecretKey: getEnvString("S3_SECRET_KEY", ""),
				PublicURL: getEnvString("S3_PUBLIC_URL", ""),
			},
		},
		Render: RenderConfig{
			FontDir:          fontDir,
			DefaultFont:      getEnvString("DEFAULT_FONT", filepath.Join(fontDir, "Arial.ttf")),
			FFmpegPath:       getEnvString("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:      getEnvString("FFPROBE_PATH", "ffprobe"),
			Concurrency:      getEnvInt("RENDER_CONCURRENCY", 2),
			ReplaceRulesFile: getEnvString("REPLACE_RULES_FILE", ""),
		},
		System: SystemConfig{
			DataDir:    getEnvString("DATA_DIR", "/app/data"),
			JobWorkers: getEnvInt("JOB_WORKERS", 1),
			LogLevel:   getEnvString("LOG_LEVEL", "info"),
			LogFormat:  getEnvString("LOG_FORMAT", "console"),
		},
		Cleanup: CleanupConfig{
			CronExpr:    getEnvString("CLEANUP_CRON_EXPR", "0 * * * *"),
			MaxAgeHours: getEnvInt("CLEANUP_MAX_AGE_HOURS", 24),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: addr=%s storage=%s temp=%s fonts=%s workers=%d concurrency=%d",
		config.HTTP.Addr, config.Storage.Provider, config.Storage.TempPath,
		config.Render.FontDir, config.System.JobWorkers, config.Render.Concurrency)
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	switch c.Storage.Provider {
	case "local":
		u, err := url.Parse(c.HTTP.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("BASE_URL must be an absolute url, got %q", c.HTTP.BaseURL)
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_PROVIDER=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_PROVIDER %q", c.Storage.Provider)
	}
	if c.Render.Concurrency < 1 {
		return fmt.Errorf("RENDER_CONCURRENCY must be at least 1")
	}
	if c.System.JobWorkers < 1 {
		return fmt.Errorf("JOB_WORKERS must be at least 1")
	}
	if c.Cleanup.MaxAgeHours < 1 {
		return fmt.Errorf("CLEANUP_MAX_AGE_HOURS must be at least 1")
	}
	if _, err := cron.ParseStandard(c.Cleanup.CronExpr); err != nil {
		return fmt.Errorf("invalid CLEANUP_CRON_EXPR: %w", err)
	}
	return nil
}

// DBPath is the sqlite database location inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, dbFileName)
}

// JobTempDir is where downloads and intermediate clips live.
func (c *Config) JobTempDir() string {
	return filepath.Join(c.Storage.TempPath, "captioner")
}

// PrepareStorage creates the local storage and temp directories and checks
// that storage is writable.
func (c *Config) PrepareStorage() error {
	if err := os.MkdirAll(c.JobTempDir(), 0o755); err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}
	if c.Storage.Provider != "local" {
		return nil
	}
	if err := os.MkdirAll(c.Storage.LocalPath, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStorageNotWritable, c.Storage.LocalPath, err)
	}
	probe, err := os.CreateTemp(c.Storage.LocalPath, ".write-check-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStorageNotWritable, c.Storage.LocalPath, err)
	}
	probe.Close()
	_ = os.Remove(probe.Name())
	return nil
}

// StorageConfig selects and configures the artifact uploader.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Provider: c.Storage.Provider,
		LocalDir: c.Storage.LocalPath,
		BaseURL:  c.HTTP.BaseURL,
		S3: storage.S3Config{
			Bucket:    c.Storage.S3.Bucket,
			Region:    c.Storage.S3.Region,
			Endpoint:  c.Storage.S3.Endpoint,
			AccessKey: c.Storage.S3.AccessKey,
			SecretKey: c.Storage.S3.SecretKey,
			PublicURL: c.Storage.S3.PublicURL,
		},
	}
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
