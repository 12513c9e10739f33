package jobs

import (
	"time"

	"github.com/MimeLyc/video-captioner/pkg/log"
)

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		for {
			job, ok := q.next()
			if !ok {
				break
			}
			start := time.Now()
			resultURL, err := exec(q.ctx, job)
			if _, err := q.finish(job.ID, resultURL, err); err != nil {
				log.Warn("Job %s failed after %s", job.ID, log.Since(start))
			}
			select {
			case <-q.stopCh:
				return
			default:
			}
		}

		select {
		case <-q.stopCh:
			return
		case <-q.wake:
		}
	}
}

// signal nudges an idle worker. When every token slot is taken the
// workers already have enough reasons to look at the pending list.
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest pending job and marks it running. Entries whose job
// was pruned or is no longer pending are skipped.
func (q *Queue) next() (*CaptionJob, bool) {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil, false
	}
	for len(q.pending) > 0 {
		id := q.pending[0]
		q.pending = q.pending[1:]

		job, ok := q.jobs[id]
		if !ok || job.Status != StatusPending {
			continue
		}
		job.Status = StatusRunning
		job.UpdatedAt = time.Now()
		snapshot := cloneJob(job)
		more := len(q.pending) > 0
		q.mu.Unlock()

		q.persist(snapshot)
		if more {
			q.signal()
		}
		return snapshot, true
	}
	q.mu.Unlock()
	return nil, false
}
