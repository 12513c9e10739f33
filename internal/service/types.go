package service

import (
	"github.com/MimeLyc/video-captioner/internal/caption"
)

// Endpoint is the route name reported in response envelopes.
const Endpoint = "/v1/video/caption"

// Envelope is the body of every captioning response and webhook delivery.
type Envelope struct {
	Code     int    `json:"code"`
	ID       string `json:"id,omitempty"`
	JobID    string `json:"job_id"`
	Response any    `json:"response"`
	Message  string `json:"message"`
	Endpoint string `json:"endpoint"`
}

func SuccessEnvelope(jobID, requestID, url string) Envelope {
	return Envelope{
		Code:     200,
		ID:       requestID,
		JobID:    jobID,
		Response: url,
		Message:  "success",
		Endpoint: Endpoint,
	}
}

func FailureEnvelope(jobID, requestID string, err error) Envelope {
	return Envelope{
		Code:     500,
		ID:       requestID,
		JobID:    jobID,
		Message:  err.Error(),
		Endpoint: Endpoint,
	}
}

// RenderRequest captions a local video without fetching or uploading.
type RenderRequest struct {
	VideoPath string
	Words     []caption.WordEntry
	Settings  caption.Settings
	Replace   []caption.ReplacementRule
	OutPath   string
}

type RenderResult struct {
	OutPath  string
	Timeline *caption.Timeline
	Duration float64
}
