package janitor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/video-captioner/internal/config"
	"github.com/MimeLyc/video-captioner/pkg/file"
	"github.com/MimeLyc/video-captioner/pkg/icron"
	"github.com/MimeLyc/video-captioner/pkg/log"
)

type orphanCleaner interface {
	DeleteOrphanTimelines(ctx context.Context) (int64, error)
}

// SweepResult summarizes one cleanup pass.
type SweepResult struct {
	RemovedFiles    int
	RemovedOrphans  int64
	FailedRemovals  int
	OlderThanCutoff time.Time
}

// Janitor periodically removes stale downloads and intermediate clips from
// the temp directory and drops timelines whose job no longer exists.
type Janitor struct {
	dir   string
	cron  *cron.Cron
	store orphanCleaner
	now   func() time.Time

	mu       sync.Mutex
	cronExpr string
	maxAge   time.Duration
	entryID  cron.EntryID
	ctx      context.Context

	group singleflight.Group
}

type Option func(*Janitor)

func WithOrphanCleaner(store orphanCleaner) Option {
	return func(j *Janitor) {
		j.store = store
	}
}

func WithSchedule(cronExpr string, maxAgeHours int) Option {
	return func(j *Janitor) {
		if cronExpr != "" {
			j.cronExpr = cronExpr
		}
		if maxAgeHours > 0 {
			j.maxAge = time.Duration(maxAgeHours) * time.Hour
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(j *Janitor) {
		j.now = now
	}
}

func New(dir string, c *cron.Cron, opts ...Option) *Janitor {
	j := &Janitor{
		dir:      dir,
		cron:     c,
		now:      time.Now,
		cronExpr: "0 * * * *",
		maxAge:   24 * time.Hour,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Schedule registers the sweep on the cron engine. The engine itself is
// started and stopped by the caller.
func (j *Janitor) Schedule(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ctx = ctx
	return j.scheduleLocked(j.cronExpr)
}

// ApplyRuntimeSettings swaps the sweep schedule and the age threshold.
func (j *Janitor) ApplyRuntimeSettings(settings config.RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.maxAge = time.Duration(settings.CleanupMaxAgeHours) * time.Hour
	if settings.CleanupCronExpr == j.cronExpr && j.entryID != 0 {
		return nil
	}
	return j.scheduleLocked(settings.CleanupCronExpr)
}

func (j *Janitor) scheduleLocked(expr string) error {
	id, err := j.cron.AddFunc(expr, func() {
		if _, err := j.Sweep(j.context()); err != nil {
			log.Error("Temp cleanup failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", expr, err)
	}
	if j.entryID != 0 {
		j.cron.Remove(j.entryID)
	}
	j.entryID = id
	j.cronExpr = expr

	if info, err := icron.GetTriggerInfo(expr, j.now()); err == nil {
		log.Info("Temp cleanup scheduled (%s), next run in %s", expr, info.TimeUntilNext.Round(time.Second))
	}
	return nil
}

func (j *Janitor) context() context.Context {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.ctx
}

// Sweep runs one cleanup pass. Concurrent callers share the pass in flight.
func (j *Janitor) Sweep(ctx context.Context) (SweepResult, error) {
	v, err, _ := j.group.Do("sweep", func() (any, error) {
		return j.sweep(ctx)
	})
	if err != nil {
		return SweepResult{}, err
	}
	return v.(SweepResult), nil
}

func (j *Janitor) sweep(ctx context.Context) (SweepResult, error) {
	j.mu.Lock()
	cutoff := j.now().Add(-j.maxAge)
	j.mu.Unlock()

	result := SweepResult{OlderThanCutoff: cutoff}
	stale, err := file.FindOlderThan(j.dir, cutoff)
	if err != nil {
		return result, fmt.Errorf("scan %s: %w", j.dir, err)
	}
	for _, path := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("Failed to remove stale file %s: %v", path, err)
			result.FailedRemovals++
			continue
		}
		result.RemovedFiles++
	}

	if j.store != nil {
		n, err := j.store.DeleteOrphanTimelines(ctx)
		if err != nil {
			return result, fmt.Errorf("delete orphan timelines: %w", err)
		}
		result.RemovedOrphans = n
	}

	if result.RemovedFiles > 0 || result.RemovedOrphans > 0 {
		log.Info("Temp cleanup removed %d files and %d orphan timelines", result.RemovedFiles, result.RemovedOrphans)
	}
	return result, nil
}
