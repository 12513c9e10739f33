package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/video-captioner/internal/caption"
	"github.com/MimeLyc/video-captioner/internal/jobs"
	"github.com/MimeLyc/video-captioner/internal/render"
)

type fakeFetcher struct {
	dir string
	err error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.dir, "source.mp4")
	return path, os.WriteFile(path, []byte("source"), 0o644)
}

type fakeProber struct {
	duration float64
	err      error
}

func (p fakeProber) ProbeDuration(context.Context, string) (float64, error) {
	return p.duration, p.err
}

type fakeAssembler struct {
	dir      string
	err      error
	segments []caption.Segment
}

func (a *fakeAssembler) Assemble(_ context.Context, segments []caption.Segment, _ string) (string, error) {
	a.segments = segments
	if a.err != nil {
		return "", a.err
	}
	path := filepath.Join(a.dir, "artifact.mp4")
	return path, os.WriteFile(path, []byte("captioned"), 0o644)
}

type fakeUploader struct {
	err      error
	uploaded []string
}

func (u *fakeUploader) Upload(_ context.Context, path string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.uploaded = append(u.uploaded, path)
	return "https://cdn.example.com/" + filepath.Base(path), nil
}

type fakeTimelines struct {
	saved map[string]*caption.Timeline
}

func (f *fakeTimelines) SaveTimeline(_ context.Context, jobID string, tl *caption.Timeline) error {
	if f.saved == nil {
		f.saved = map[string]*caption.Timeline{}
	}
	f.saved[jobID] = tl
	return nil
}

type fixture struct {
	dir       string
	fetcher   *fakeFetcher
	prober    fakeProber
	assembler *fakeAssembler
	uploader  *fakeUploader
	timelines *fakeTimelines
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	return &fixture{
		dir:       dir,
		fetcher:   &fakeFetcher{dir: dir},
		prober:    fakeProber{duration: 3},
		assembler: &fakeAssembler{dir: dir},
		uploader:  &fakeUploader{},
		timelines: &fakeTimelines{},
	}
}

func (f *fixture) service(opts ...Option) *CaptionService {
	opts = append([]Option{WithTimelineStore(f.timelines)}, opts...)
	return NewCaptionService(
		f.fetcher,
		f.prober,
		caption.NewSegmenter(caption.FontResolver{Default: "/app/fonts/Arial.ttf"}),
		f.assembler,
		f.uploader,
		opts...,
	)
}

func (f *fixture) leftovers(t *testing.T) []string {
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func testJob() *jobs.CaptionJob {
	return &jobs.CaptionJob{
		ID: "job-1",
		Payload: jobs.JobPayload{
			VideoURL: "https://example.com/in.mp4",
			Words:    []caption.WordEntry{{Word: "a", Start: 0, End: 0.5}, {Word: "b", Start: 0.5, End: 1}},
			Settings: caption.Settings{MaxWordsPerLine: 2},
		},
	}
}

func TestProcess_Success(t *testing.T) {
	f := newFixture(t)

	url, err := f.service().Process(context.Background(), testJob())
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/artifact.mp4", url)
	require.Len(t, f.assembler.segments, 2)
	assert.Equal(t, "a b", f.assembler.segments[0].Text)
	assert.Equal(t, caption.KindGap, f.assembler.segments[1].Kind)
	assert.Equal(t, 3.0, f.assembler.segments[1].End)
	require.Contains(t, f.timelines.saved, "job-1")
	assert.Empty(t, f.leftovers(t), "source and artifact removed")
}

func TestProcess_MergesDefaultRulesAndFont(t *testing.T) {
	f := newFixture(t)
	svc := f.service(
		WithDefaultRules([]caption.ReplacementRule{{Find: "a", Replace: "x"}}),
		WithDefaultFontFamily("Nonexistent Sans"),
	)
	job := testJob()
	job.Payload.Replace = []caption.ReplacementRule{{Find: "x", Replace: "y"}}

	_, err := svc.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "y b", f.assembler.segments[0].Text)
	assert.Equal(t, "/app/fonts/Arial.ttf", f.assembler.segments[0].Style.FontPath)
}

func TestProcess_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, job *jobs.CaptionJob)
		want   ErrorType
	}{
		{
			name:   "fetch",
			mutate: func(f *fixture, _ *jobs.CaptionJob) { f.fetcher.err = errors.New("404") },
			want:   ErrSourceFetch,
		},
		{
			name:   "probe",
			mutate: func(f *fixture, _ *jobs.CaptionJob) { f.prober.err = errors.New("no duration") },
			want:   ErrSourceFetch,
		},
		{
			name: "no valid segments",
			mutate: func(_ *fixture, job *jobs.CaptionJob) {
				job.Payload.Words = []caption.WordEntry{{Word: "late", Start: 5, End: 6}}
			},
			want: ErrNoValidSegments,
		},
		{
			name: "render",
			mutate: func(f *fixture, _ *jobs.CaptionJob) {
				f.assembler.err = &render.RenderFailure{SegmentIndex: 1, Cause: errors.New("drawtext")}
			},
			want: ErrRender,
		},
		{
			name:   "upload",
			mutate: func(f *fixture, _ *jobs.CaptionJob) { f.uploader.err = errors.New("denied") },
			want:   ErrUpload,
		},
		{
			name: "canceled",
			mutate: func(f *fixture, _ *jobs.CaptionJob) {
				f.assembler.err = &render.RenderFailure{SegmentIndex: 0, Cause: context.Canceled}
			},
			want: ErrCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := testJob()
			tt.mutate(f, job)

			url, err := f.service().Process(context.Background(), job)
			require.Error(t, err)
			assert.Empty(t, url)
			assert.True(t, IsErrorType(err, tt.want), "got %v", err)
			assert.Empty(t, f.leftovers(t), "temporary files removed after failure")
		})
	}
}

func TestExecute_DeliversWebhook(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Envelope
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		mu.Lock()
		received = append(received, env)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	f := newFixture(t)
	svc := f.service(WithNotifier(NewWebhookNotifier(hook.Client())))

	job := testJob()
	job.Payload.WebhookURL = hook.URL
	job.Payload.RequestID = "req-9"
	url, err := svc.Execute(context.Background(), job)
	require.NoError(t, err)

	f.uploader.err = errors.New("denied")
	_, err = svc.Execute(context.Background(), job)
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, 200, received[0].Code)
	assert.Equal(t, url, received[0].Response)
	assert.Equal(t, "req-9", received[0].ID)
	assert.Equal(t, "job-1", received[0].JobID)
	assert.Equal(t, Endpoint, received[0].Endpoint)
	assert.Equal(t, 500, received[1].Code)
	assert.Contains(t, received[1].Message, "UploadFailure")
}

func TestExecute_WebhookFailureKeepsResult(t *testing.T) {
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer hook.Close()

	f := newFixture(t)
	svc := f.service(WithNotifier(NewWebhookNotifier(hook.Client())))
	job := testJob()
	job.Payload.WebhookURL = hook.URL

	url, err := svc.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
}

func TestRender_WritesOutPath(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(t.TempDir(), "nested", "out.mp4")

	res, err := f.service().Render(context.Background(), RenderRequest{
		VideoPath: "/local/in.mp4",
		Words:     []caption.WordEntry{{Word: "hi", Start: 0, End: 1}},
		OutPath:   out,
	})
	require.NoError(t, err)
	assert.Equal(t, out, res.OutPath)
	assert.Equal(t, 3.0, res.Duration)
	assert.Equal(t, 1, res.Timeline.Captions())

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "captioned", string(content))
	assert.Empty(t, f.uploader.uploaded)
}

func TestCaptionError_Format(t *testing.T) {
	err := NewErrorWithCause(ErrRender, "assemble captioned video", errors.New("boom")).
		WithContext("segment", 3).
		WithContext("job", "j")
	assert.Equal(t, "[RenderFailure] assemble captioned video | context: job=j, segment=3 | cause: boom", err.Error())
	assert.ErrorIs(t, err, err.Cause)
}

func TestClassify_KeepsTypedErrors(t *testing.T) {
	typed := NewError(ErrValidation, "bad")
	assert.Same(t, typed, Classify(typed, ErrUnknown, "x"))
	assert.Nil(t, Classify(nil, ErrUnknown, "x"))
	assert.True(t, IsErrorType(Classify(errors.New("x"), ErrUpload, "x"), ErrUpload))
}

func TestSafeExecute(t *testing.T) {
	err := SafeExecute(func() error { panic("boom") })
	assert.True(t, IsErrorType(err, ErrUnknown))
}

func TestGetAdvice(t *testing.T) {
	h := &DefaultErrorHandler{}
	for _, typ := range []ErrorType{ErrNoValidSegments, ErrRender, ErrSourceFetch, ErrUpload, ErrValidation, ErrConfig, ErrCanceled, ErrUnknown} {
		assert.NotEmpty(t, h.GetAdvice(NewError(typ, "x")), typ.String())
	}
}
