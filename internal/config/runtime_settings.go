package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

const DefaultRuntimeSettingsFile = "/app/config/settings.json"

// RuntimeSettings are the options an operator can change through
// PUT /api/settings without restarting the server.
type RuntimeSettings struct {
	CleanupCronExpr    string `json:"cleanup_cron_expr"`
	CleanupMaxAgeHours int    `json:"cleanup_max_age_hours"`
	DefaultFontFamily  string `json:"default_font_family"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

func (s RuntimeSettings) normalized() RuntimeSettings {
	s.CleanupCronExpr = strings.TrimSpace(s.CleanupCronExpr)
	s.DefaultFontFamily = strings.TrimSpace(s.DefaultFontFamily)
	return s
}

func (s RuntimeSettings) Validate() error {
	var errs []error
	if expr := strings.TrimSpace(s.CleanupCronExpr); expr == "" {
		errs = append(errs, errors.New("cleanup_cron_expr is required"))
	} else if _, err := cron.ParseStandard(expr); err != nil {
		errs = append(errs, fmt.Errorf("invalid cleanup_cron_expr: %w", err))
	}
	if s.CleanupMaxAgeHours < 1 {
		errs = append(errs, errors.New("cleanup_max_age_hours must be at least 1"))
	}
	return errors.Join(errs...)
}

// RuntimeSettings snapshots the currently effective runtime options.
func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		CleanupCronExpr:    c.Cleanup.CronExpr,
		CleanupMaxAgeHours: c.Cleanup.MaxAgeHours,
		DefaultFontFamily:  c.Render.DefaultFontFamily,
	}
}

// WithRuntimeSettings overlays persisted settings on the environment.
// Empty values keep what the environment configured.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	settings = settings.normalized()
	return func(c *Config) {
		if settings.CleanupCronExpr != "" {
			c.Cleanup.CronExpr = settings.CleanupCronExpr
		}
		if settings.CleanupMaxAgeHours > 0 {
			c.Cleanup.MaxAgeHours = settings.CleanupMaxAgeHours
		}
		if settings.DefaultFontFamily != "" {
			c.Render.DefaultFontFamily = settings.DefaultFontFamily
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return settings.normalized(), nil
}

// WriteRuntimeSettingsFile validates settings and replaces the file
// atomically.
func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	settings = settings.normalized()
	if err := settings.Validate(); err != nil {
		return err
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(content, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RuntimeSettingsStore keeps the effective settings in memory and on disk.
// Updates are serialized so the file always matches the last accepted value.
type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("settings file path is required")
	}
	initial = initial.normalized()
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{path: path, current: initial}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	next = next.normalized()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}
	s.current = next
	return next, nil
}
