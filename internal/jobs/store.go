package jobs

import "context"

// Store persists job states for queue restart recovery.
type Store interface {
	LoadJobs(ctx context.Context) ([]*CaptionJob, error)
	UpsertJob(ctx context.Context, job *CaptionJob) error
	DeleteJob(ctx context.Context, jobID string) error
	// DeleteJobData removes all auxiliary data (timelines) for a job.
	DeleteJobData(ctx context.Context, jobID string) error
}
