package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/video-captioner/internal/caption"
	"github.com/MimeLyc/video-captioner/internal/jobs"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "captioner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_JobsRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	ctx := context.Background()
	x := 12
	job := &jobs.CaptionJob{
		ID:        "5f0c8a8e-0000-4000-8000-000000000001",
		Source:    "api",
		DedupeKey: "req-1",
		Payload: jobs.JobPayload{
			VideoURL:   "https://example.com/in.mp4",
			Words:      []caption.WordEntry{{Word: "hi", Start: 0, End: 0.5}},
			Settings:   caption.Settings{MaxWordsPerLine: 2, X: &x},
			Replace:    []caption.ReplacementRule{{Find: "hi", Replace: "hello"}},
			WebhookURL: "https://hooks.example.com/done",
			RequestID:  "req-1",
		},
		Status:    jobs.StatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.UpsertJob(ctx, job))

	job.Status = jobs.StatusSuccess
	job.ResultURL = "https://cdn.example.com/out.mp4"
	require.NoError(t, store.UpsertJob(ctx, job))

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, jobs.StatusSuccess, got.Status)
	assert.Equal(t, job.ResultURL, got.ResultURL)
	assert.Equal(t, job.Payload.Words, got.Payload.Words)
	assert.Equal(t, job.Payload.Replace, got.Payload.Replace)
	require.NotNil(t, got.Payload.Settings.X)
	assert.Equal(t, 12, *got.Payload.Settings.X)

	require.NoError(t, store.DeleteJob(ctx, job.ID))
	all, err = store.LoadJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteStore_TimelineAndCleanup(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	style := caption.Style{FontPath: "/app/fonts/Arial.ttf", FontSize: 24, FillColor: "white"}
	tl := &caption.Timeline{
		Segments: []caption.Segment{
			caption.Caption(0, 0.5, "a", style),
			caption.Gap(0.5, 1.5),
		},
		Dropped:  1,
		Language: language.English,
	}
	require.NoError(t, store.SaveTimeline(ctx, "job-1", tl))

	rec, ok, err := store.LoadTimeline(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "en", rec.Language)
	assert.Equal(t, 1, rec.Dropped)
	assert.Equal(t, tl.Segments, rec.Segments)

	require.NoError(t, store.DeleteJobData(ctx, "job-1"))
	_, ok, err = store.LoadTimeline(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_DeleteOrphanTimelines(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.UpsertJob(ctx, &jobs.CaptionJob{ID: "kept", Source: "api", Status: jobs.StatusSuccess, CreatedAt: now, UpdatedAt: now}))

	tl := &caption.Timeline{Segments: []caption.Segment{caption.Gap(0, 1)}, Language: language.Und}
	require.NoError(t, store.SaveTimeline(ctx, "kept", tl))
	require.NoError(t, store.SaveTimeline(ctx, "gone", tl))

	n, err := store.DeleteOrphanTimelines(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, ok, err := store.LoadTimeline(ctx, "kept")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "nested", "captioner.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, store.UpsertJob(ctx, &jobs.CaptionJob{ID: "j", Source: "api", Status: jobs.StatusPending, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "j", all[0].ID)
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("  ")
	assert.Error(t, err)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("12"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}

func TestLoadMigrations_SkipsApplied(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_more.sql": {Data: []byte("SELECT 2;")},
		"migrations/001_init.sql": {Data: []byte("SELECT 1;")},
		"migrations/notes.sql":    {Data: []byte("-- not a migration")},
	}

	all, err := loadMigrations(fsys, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].version)
	assert.Equal(t, "002_more.sql", all[1].name)

	rest, err := loadMigrations(fsys, 1)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, 2, rest[0].version)
}
