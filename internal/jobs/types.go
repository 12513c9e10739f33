package jobs

import (
	"time"

	"github.com/MimeLyc/video-captioner/internal/caption"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

// JobPayload is the captioning request a job was created from.
type JobPayload struct {
	VideoURL   string                    `json:"video_url"`
	Words      []caption.WordEntry       `json:"transcribe"`
	Settings   caption.Settings          `json:"settings"`
	Replace    []caption.ReplacementRule `json:"replace,omitempty"`
	WebhookURL string                    `json:"webhook_url,omitempty"`
	RequestID  string                    `json:"id,omitempty"`
}

type CaptionJob struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key,omitempty"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	ResultURL string     `json:"result_url,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
