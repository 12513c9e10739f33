package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeSettings_Validate(t *testing.T) {
	valid := RuntimeSettings{
		CleanupCronExpr:    "*/5 * * * *",
		CleanupMaxAgeHours: 6,
		DefaultFontFamily:  "Roboto",
	}
	require.NoError(t, valid.Validate())

	invalid := valid
	invalid.CleanupCronExpr = "bad cron"
	require.Error(t, invalid.Validate())

	invalidAge := valid
	invalidAge.CleanupMaxAgeHours = 0
	require.Error(t, invalidAge.Validate())

	noFont := valid
	noFont.DefaultFontFamily = ""
	require.NoError(t, noFont.Validate(), "font family is optional")
}

func TestRuntimeSettingsFile_RoundTrip(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "settings", "runtime.json")
	input := RuntimeSettings{
		CleanupCronExpr:    "0 0 * * *",
		CleanupMaxAgeHours: 12,
		DefaultFontFamily:  "Open Sans",
	}

	require.NoError(t, WriteRuntimeSettingsFile(filePath, input))

	got, err := LoadRuntimeSettingsFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, input, got)

	info, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestWithRuntimeSettings_OverridesConfig(t *testing.T) {
	t.Setenv("CLEANUP_CRON_EXPR", "0 1 * * *")
	t.Setenv("CLEANUP_MAX_AGE_HOURS", "48")

	override := RuntimeSettings{
		CleanupCronExpr:    "*/30 * * * *",
		CleanupMaxAgeHours: 2,
		DefaultFontFamily:  "Roboto",
	}

	cfg, err := NewFromEnv(WithRuntimeSettings(override))
	require.NoError(t, err)
	assert.Equal(t, override.CleanupCronExpr, cfg.Cleanup.CronExpr)
	assert.Equal(t, 2, cfg.Cleanup.MaxAgeHours)
	assert.Equal(t, "Roboto", cfg.Render.DefaultFontFamily)
	assert.Equal(t, override, cfg.RuntimeSettings())
}

func TestRuntimeSettingsStore_UpdatePersistsFile(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "runtime-settings.json")
	initial := RuntimeSettings{
		CleanupCronExpr:    "0 * * * *",
		CleanupMaxAgeHours: 24,
	}

	store, err := NewRuntimeSettingsStore(filePath, initial)
	require.NoError(t, err)

	next := RuntimeSettings{
		CleanupCronExpr:    "*/10 * * * *",
		CleanupMaxAgeHours: 1,
		DefaultFontFamily:  "Inter",
	}
	got, err := store.UpdateRuntimeSettings(next)
	require.NoError(t, err)
	assert.Equal(t, next, got)

	current, err := store.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Equal(t, next, current)

	loaded, err := LoadRuntimeSettingsFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, next, loaded)

	_, err = store.UpdateRuntimeSettings(RuntimeSettings{CleanupCronExpr: "nope", CleanupMaxAgeHours: 1})
	assert.Error(t, err)
	current, _ = store.GetRuntimeSettings()
	assert.Equal(t, next, current, "invalid update leaves settings unchanged")
}

func TestRuntimeSettings_ValidateReportsAllProblems(t *testing.T) {
	err := RuntimeSettings{CleanupCronExpr: " ", CleanupMaxAgeHours: -1}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cleanup_cron_expr is required")
	assert.Contains(t, err.Error(), "cleanup_max_age_hours")
}

func TestRuntimeSettingsStore_TrimsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewRuntimeSettingsStore(path, RuntimeSettings{CleanupCronExpr: "@hourly", CleanupMaxAgeHours: 1})
	require.NoError(t, err)

	got, err := store.UpdateRuntimeSettings(RuntimeSettings{
		CleanupCronExpr:    "  0 3 * * *  ",
		CleanupMaxAgeHours: 4,
		DefaultFontFamily:  " Roboto ",
	})
	require.NoError(t, err)
	assert.Equal(t, "0 3 * * *", got.CleanupCronExpr)
	assert.Equal(t, "Roboto", got.DefaultFontFamily)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file renamed into place")
}
