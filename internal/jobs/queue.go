package jobs

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/video-captioner/pkg/log"
)

// ErrDuplicateJob is returned by Do when an active job already holds the
// dedupe key.
var ErrDuplicateJob = errors.New("a job with the same id is already in progress")

// Executor runs a job and returns the public URL of its result.
type Executor func(ctx context.Context, job *CaptionJob) (string, error)

// Queue tracks caption jobs in memory, mirrors every state change to an
// optional Store and runs pending jobs on a fixed pool of workers.
type Queue struct {
	workerCount int
	maxJobs     int
	store       Store

	mu      sync.RWMutex
	jobs    map[string]*CaptionJob
	dedupe  map[string]string
	pending []string
	started bool

	// wake holds at most one token per worker; a token means "look at pending".
	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// ctx is cancelled by Stop so running executors can abort.
	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Queue)

// WithMaxJobs bounds how many jobs are retained before terminal ones are pruned.
func WithMaxJobs(n int) Option {
	return func(q *Queue) {
		q.maxJobs = n
	}
}

func NewQueue(workerCount int, store Store, opts ...Option) *Queue {
	workerCount = max(workerCount, 1)
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		workerCount: workerCount,
		maxJobs:     1000,
		store:       store,
		jobs:        make(map[string]*CaptionJob),
		dedupe:      make(map[string]string),
		wake:        make(chan struct{}, workerCount),
		stopCh:      make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.restore(context.Background())
	return q
}

// Enqueue records a pending job for the workers. When an unfinished job
// already holds req.DedupeKey that job is returned with created=false.
func (q *Queue) Enqueue(req EnqueueRequest) (job *CaptionJob, created bool) {
	q.mu.Lock()
	if existing := q.activeByKeyLocked(req.DedupeKey); existing != nil {
		defer q.mu.Unlock()
		return cloneJob(existing), false
	}
	snapshot := cloneJob(q.addLocked(req, StatusPending))
	q.pending = append(q.pending, snapshot.ID)
	q.mu.Unlock()

	q.persist(snapshot)
	q.signal()
	return snapshot, true
}

// Do records a job and runs it on the calling goroutine, bypassing the
// worker pool. The returned job is in its terminal state.
func (q *Queue) Do(ctx context.Context, req EnqueueRequest, exec Executor) (*CaptionJob, error) {
	q.mu.Lock()
	if existing := q.activeByKeyLocked(req.DedupeKey); existing != nil {
		defer q.mu.Unlock()
		return cloneJob(existing), ErrDuplicateJob
	}
	snapshot := cloneJob(q.addLocked(req, StatusRunning))
	q.mu.Unlock()

	q.persist(snapshot)
	resultURL, err := exec(ctx, snapshot)
	return q.finish(snapshot.ID, resultURL, err)
}

func (q *Queue) Get(id string) (*CaptionJob, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// List returns every retained job, newest first.
func (q *Queue) List() []*CaptionJob {
	q.mu.RLock()
	ret := make([]*CaptionJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	q.mu.RUnlock()

	slices.SortFunc(ret, func(a, b *CaptionJob) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return ret
}

// Start launches the workers. Jobs enqueued before Start, or restored from
// the store, run oldest first.
func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	for range q.workerCount {
		q.wg.Add(1)
		go q.worker(exec)
	}
	q.signal()
}

// Stop cancels running jobs and waits for the workers to exit.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.cancel()
		q.wg.Wait()
	})
}

func (q *Queue) addLocked(req EnqueueRequest, status Status) *CaptionJob {
	now := time.Now()
	job := &CaptionJob{
		ID:        uuid.NewString(),
		Source:    req.Source,
		DedupeKey: req.DedupeKey,
		Payload:   req.Payload,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.jobs[job.ID] = job
	if req.DedupeKey != "" {
		q.dedupe[req.DedupeKey] = job.ID
	}
	return job
}

func (q *Queue) activeByKeyLocked(key string) *CaptionJob {
	if key == "" {
		return nil
	}
	id, ok := q.dedupe[key]
	if !ok {
		return nil
	}
	if existing, exists := q.jobs[id]; exists && !existing.Status.Terminal() {
		return existing
	}
	delete(q.dedupe, key)
	return nil
}

// finish records the outcome of a run and returns the terminal snapshot
// along with err unchanged.
func (q *Queue) finish(id string, resultURL string, err error) (*CaptionJob, error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return nil, err
	}
	job.Status, job.ResultURL, job.Error = StatusSuccess, resultURL, ""
	if err != nil {
		job.Status, job.ResultURL, job.Error = StatusFailed, "", err.Error()
	}
	job.UpdatedAt = time.Now()
	q.releaseDedupeLocked(job)
	pruned := q.pruneLocked(id)
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persist(snapshot)
	q.forget(pruned)
	return snapshot, err
}

func (q *Queue) releaseDedupeLocked(job *CaptionJob) {
	if job.DedupeKey != "" && q.dedupe[job.DedupeKey] == job.ID {
		delete(q.dedupe, job.DedupeKey)
	}
}

// pruneLocked drops the least recently updated terminal jobs until at most
// maxJobs remain. The job identified by keep is never dropped.
func (q *Queue) pruneLocked(keep string) []string {
	excess := len(q.jobs) - q.maxJobs
	if q.maxJobs <= 0 || excess <= 0 {
		return nil
	}

	var terminal []*CaptionJob
	for id, job := range q.jobs {
		if id != keep && job.Status.Terminal() {
			terminal = append(terminal, job)
		}
	}
	slices.SortFunc(terminal, func(a, b *CaptionJob) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})

	pruned := make([]string, 0, min(excess, len(terminal)))
	for _, job := range terminal[:min(excess, len(terminal))] {
		q.releaseDedupeLocked(job)
		delete(q.jobs, job.ID)
		pruned = append(pruned, job.ID)
	}
	return pruned
}

// forget removes pruned jobs and their timelines from the store.
func (q *Queue) forget(ids []string) {
	if q.store == nil {
		return
	}
	ctx := context.Background()
	for _, id := range ids {
		if err := q.store.DeleteJobData(ctx, id); err != nil {
			log.Error("Failed to delete data for pruned job %s: %v", id, err)
		}
		if err := q.store.DeleteJob(ctx, id); err != nil {
			log.Error("Failed to delete pruned job %s from store: %v", id, err)
		}
	}
}

// restore reloads persisted jobs. Jobs that were running when the process
// died go back to pending and run again once the queue starts.
func (q *Queue) restore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	var requeued []*CaptionJob
	var pending []*CaptionJob
	now := time.Now()

	q.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		job := cloneJob(raw)
		if job.Status == StatusRunning {
			job.Status = StatusPending
			job.UpdatedAt = now
			requeued = append(requeued, cloneJob(job))
		}
		q.jobs[job.ID] = job
		if job.Status == StatusPending {
			pending = append(pending, job)
			if job.DedupeKey != "" {
				q.dedupe[job.DedupeKey] = job.ID
			}
		}
	}
	slices.SortFunc(pending, func(a, b *CaptionJob) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	for _, job := range pending {
		q.pending = append(q.pending, job.ID)
	}
	q.mu.Unlock()

	if len(loaded) > 0 {
		log.Info("Restored %d jobs (%d pending, %d interrupted)", len(loaded), len(pending), len(requeued))
	}
	for _, job := range requeued {
		q.persist(job)
	}
}

func (q *Queue) persist(job *CaptionJob) {
	if q.store == nil || job == nil {
		return
	}
	if err := q.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

func cloneJob(job *CaptionJob) *CaptionJob {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}
