package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MimeLyc/video-captioner/internal/caption"
	"github.com/MimeLyc/video-captioner/internal/fetch"
	"github.com/MimeLyc/video-captioner/internal/jobs"
	"github.com/MimeLyc/video-captioner/internal/rules"
	"github.com/MimeLyc/video-captioner/internal/storage"
	"github.com/MimeLyc/video-captioner/pkg/log"
)

type prober interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

type assembler interface {
	Assemble(ctx context.Context, segments []caption.Segment, source string) (string, error)
}

type timelineStore interface {
	SaveTimeline(ctx context.Context, jobID string, tl *caption.Timeline) error
}

type notifier interface {
	Notify(ctx context.Context, url string, env Envelope) error
}

// CaptionService runs the captioning pipeline for one request at a time;
// concurrent calls share only read-only collaborators.
type CaptionService struct {
	fetcher   fetch.Fetcher
	prober    prober
	segmenter *caption.Segmenter
	assembler assembler
	uploader  storage.Uploader
	timelines timelineStore
	notifier  notifier

	defaultRules []caption.ReplacementRule

	mu                sync.RWMutex
	defaultFontFamily string
}

type Option func(*CaptionService)

func WithTimelineStore(store timelineStore) Option {
	return func(s *CaptionService) {
		s.timelines = store
	}
}

func WithNotifier(n notifier) Option {
	return func(s *CaptionService) {
		s.notifier = n
	}
}

// WithDefaultRules sets server-wide replacement rules applied before the
// rules of each request.
func WithDefaultRules(r []caption.ReplacementRule) Option {
	return func(s *CaptionService) {
		s.defaultRules = r
	}
}

func WithDefaultFontFamily(family string) Option {
	return func(s *CaptionService) {
		s.defaultFontFamily = family
	}
}

func NewCaptionService(
	fetcher fetch.Fetcher,
	prober prober,
	segmenter *caption.Segmenter,
	assembler assembler,
	uploader storage.Uploader,
	opts ...Option,
) *CaptionService {
	s := &CaptionService{
		fetcher:   fetcher,
		prober:    prober,
		segmenter: segmenter,
		assembler: assembler,
		uploader:  uploader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDefaultFontFamily changes the family used when a request names none.
func (s *CaptionService) SetDefaultFontFamily(family string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultFontFamily = family
}

func (s *CaptionService) settingsFor(in caption.Settings) caption.Settings {
	if in.FontFamily != "" {
		return in
	}
	s.mu.RLock()
	in.FontFamily = s.defaultFontFamily
	s.mu.RUnlock()
	return in
}

// Process runs the full pipeline for a job and returns the public URL of
// the captioned video. The downloaded source and the local artifact are
// removed on every path.
func (s *CaptionService) Process(ctx context.Context, job *jobs.CaptionJob) (string, error) {
	start := time.Now()
	p := job.Payload
	log.Info("Job %s: Received captioning request for %s", job.ID, p.VideoURL)
	log.Debug("Job %s: Settings received: %+v", job.ID, p.Settings)

	source, err := s.fetcher.Fetch(ctx, p.VideoURL)
	if err != nil {
		return "", Classify(err, ErrSourceFetch, "download source video")
	}
	defer removeFile(job.ID, source)
	log.Info("Job %s: Downloaded source to %s", job.ID, source)

	duration, err := s.prober.ProbeDuration(ctx, source)
	if err != nil {
		return "", Classify(err, ErrSourceFetch, "read source video duration")
	}

	tl, err := s.segmenter.Build(p.Words, rules.Merge(s.defaultRules, p.Replace), s.settingsFor(p.Settings), duration)
	if err != nil {
		return "", Classify(err, ErrNoValidSegments, "segment transcript")
	}
	log.Info("Job %s: Built %d segments (%d captions, %d batches dropped) over %.3fs",
		job.ID, len(tl.Segments), tl.Captions(), tl.Dropped, duration)
	s.saveTimeline(ctx, job.ID, tl)

	artifact, err := s.assembler.Assemble(ctx, tl.Segments, source)
	if err != nil {
		return "", Classify(err, ErrRender, "assemble captioned video")
	}
	defer removeFile(job.ID, artifact)

	url, err := s.uploader.Upload(ctx, artifact)
	if err != nil {
		return "", Classify(err, ErrUpload, "upload captioned video")
	}
	log.Info("Job %s: Captioned video uploaded to %s in %s", job.ID, url, log.Since(start))
	return url, nil
}

// Execute is Process followed by webhook delivery when the job asked for
// one. It is the queue's executor for asynchronous requests.
func (s *CaptionService) Execute(ctx context.Context, job *jobs.CaptionJob) (string, error) {
	url, err := s.Process(ctx, job)
	if err != nil {
		NewDefaultErrorHandler().Handle(err)
	}
	if job.Payload.WebhookURL == "" || s.notifier == nil {
		return url, err
	}

	env := SuccessEnvelope(job.ID, job.Payload.RequestID, url)
	if err != nil {
		env = FailureEnvelope(job.ID, job.Payload.RequestID, err)
	}
	// delivery must not be cut short by the job context being cancelled
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if nerr := s.notifier.Notify(notifyCtx, job.Payload.WebhookURL, env); nerr != nil {
		log.Warn("Job %s: Webhook delivery to %s failed: %v", job.ID, job.Payload.WebhookURL, nerr)
	}
	return url, err
}

// Render captions a local video into req.OutPath.
func (s *CaptionService) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	duration, err := s.prober.ProbeDuration(ctx, req.VideoPath)
	if err != nil {
		return nil, Classify(err, ErrSourceFetch, "read source video duration")
	}

	tl, err := s.segmenter.Build(req.Words, rules.Merge(s.defaultRules, req.Replace), s.settingsFor(req.Settings), duration)
	if err != nil {
		return nil, Classify(err, ErrNoValidSegments, "segment transcript")
	}

	artifact, err := s.assembler.Assemble(ctx, tl.Segments, req.VideoPath)
	if err != nil {
		return nil, Classify(err, ErrRender, "assemble captioned video")
	}

	outPath := req.OutPath
	if outPath == "" {
		return &RenderResult{OutPath: artifact, Timeline: tl, Duration: duration}, nil
	}
	if err := moveFile(artifact, outPath); err != nil {
		removeFile("render", artifact)
		return nil, WrapError(err, ErrUpload, "write output video").WithContext("path", outPath)
	}
	return &RenderResult{OutPath: outPath, Timeline: tl, Duration: duration}, nil
}

func (s *CaptionService) saveTimeline(ctx context.Context, jobID string, tl *caption.Timeline) {
	if s.timelines == nil {
		return
	}
	if err := s.timelines.SaveTimeline(ctx, jobID, tl); err != nil {
		log.Warn("Job %s: Failed to persist timeline: %v", jobID, err)
	}
}

func removeFile(jobID, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("Job %s: Error cleaning up %s: %v", jobID, path, err)
	}
}

// moveFile renames src to dst, copying across filesystems when needed.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return os.Remove(src)
}
