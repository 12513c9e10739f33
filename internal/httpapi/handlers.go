package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MimeLyc/video-captioner/internal/caption"
	"github.com/MimeLyc/video-captioner/internal/config"
	"github.com/MimeLyc/video-captioner/internal/jobs"
	"github.com/MimeLyc/video-captioner/internal/service"
	"github.com/MimeLyc/video-captioner/pkg/log"
)

const maxRequestBytes = 32 << 20

// captionRequest mirrors the public request body. Transcript items are kept
// raw so malformed entries can be skipped instead of failing the request.
type captionRequest struct {
	VideoURL   string            `json:"video_url" validate:"required,url"`
	Transcribe []json.RawMessage `json:"transcribe" validate:"required"`
	Settings   *caption.Settings `json:"settings" validate:"required"`
	Replace    []replaceRule     `json:"replace" validate:"omitempty,dive"`
	WebhookURL string            `json:"webhook_url" validate:"omitempty,url"`
	ID         string            `json:"id"`
}

// Pointers distinguish a missing key from an empty string.
type replaceRule struct {
	Find    *string `json:"find" validate:"required"`
	Replace *string `json:"replace" validate:"required"`
}

func (s *Server) handleCaption(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := s.decodeCaptionRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload := req.payload()
	enqueue := jobs.EnqueueRequest{
		Source:    "api",
		DedupeKey: req.ID,
		Payload:   payload,
	}
	log.Info("Received caption request for %s (%d words, webhook=%t)",
		payload.VideoURL, len(payload.Words), payload.WebhookURL != "")

	if payload.WebhookURL != "" {
		job, created := s.queue.Enqueue(enqueue)
		if !created {
			writeError(w, http.StatusConflict, jobs.ErrDuplicateJob.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, service.Envelope{
			Code:     http.StatusAccepted,
			ID:       payload.RequestID,
			JobID:    job.ID,
			Message:  "processing",
			Endpoint: service.Endpoint,
		})
		return
	}

	job, err := s.queue.Do(r.Context(), enqueue, s.exec)
	if errors.Is(err, jobs.ErrDuplicateJob) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, service.FailureEnvelope(job.ID, payload.RequestID, err))
		return
	}
	writeJSON(w, http.StatusOK, service.SuccessEnvelope(job.ID, payload.RequestID, job.ResultURL))
}

func (s *Server) decodeCaptionRequest(r *http.Request) (*captionRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	// Only top-level keys are strict; settings may carry extra options.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, errors.New("invalid json body")
	}
	for key := range top {
		if !knownRequestKeys[key] {
			return nil, fmt.Errorf("unknown field %q", key)
		}
	}

	var req captionRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %v", err)
	}
	if err := s.validate.Struct(&req); err != nil {
		return nil, validationError(err)
	}
	return &req, nil
}

var knownRequestKeys = map[string]bool{
	"video_url":   true,
	"transcribe":  true,
	"settings":    true,
	"replace":     true,
	"webhook_url": true,
	"id":          true,
}

func (req *captionRequest) payload() jobs.JobPayload {
	words := make([]caption.WordEntry, 0, len(req.Transcribe))
	skipped := 0
	for _, raw := range req.Transcribe {
		var w caption.WordEntry
		if err := json.Unmarshal(raw, &w); err != nil {
			skipped++
			continue
		}
		words = append(words, w)
	}
	if skipped > 0 {
		log.Warn("Skipped %d malformed transcript entries", skipped)
	}

	replace := make([]caption.ReplacementRule, 0, len(req.Replace))
	for _, rule := range req.Replace {
		replace = append(replace, caption.ReplacementRule{Find: *rule.Find, Replace: *rule.Replace})
	}

	return jobs.JobPayload{
		VideoURL:   req.VideoURL,
		Words:      words,
		Settings:   *req.Settings,
		Replace:    replace,
		WebhookURL: req.WebhookURL,
		RequestID:  req.ID,
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid url", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.queue.List())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
