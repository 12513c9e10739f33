package persistence

import (
	"time"

	"github.com/MimeLyc/video-captioner/internal/caption"
)

// TimelineRecord is the segment timeline persisted for a job.
type TimelineRecord struct {
	JobID     string            `json:"job_id"`
	Language  string            `json:"language"`
	Dropped   int               `json:"dropped"`
	Segments  []caption.Segment `json:"segments"`
	UpdatedAt time.Time         `json:"updated_at"`
}
