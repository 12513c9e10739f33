package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MimeLyc/video-captioner/internal/caption"
	"github.com/MimeLyc/video-captioner/internal/config"
	"github.com/MimeLyc/video-captioner/internal/jobs"
	"github.com/MimeLyc/video-captioner/internal/persistence"
	"github.com/MimeLyc/video-captioner/internal/service"
)

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type timelineLoader interface {
	LoadTimeline(ctx context.Context, jobID string) (persistence.TimelineRecord, bool, error)
}

type Server struct {
	queue     *jobs.Queue
	exec      jobs.Executor
	timelines timelineLoader
	settings  runtimeSettingsStore
	apply     runtimeSettingsApplier
	validate  *validator.Validate

	apiKey     string
	storageDir string

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithAPIKey requires every /v1 and /api request to carry the key in the
// X-API-Key header. An empty key disables the check.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithStorageDir serves locally stored artifacts under /storage/.
func WithStorageDir(dir string) Option {
	return func(s *Server) {
		s.storageDir = dir
	}
}

func WithTimelineLoader(loader timelineLoader) Option {
	return func(s *Server) {
		s.timelines = loader
	}
}

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

// NewServer wires the HTTP routes. exec runs synchronous caption requests;
// asynchronous ones are picked up by the queue's own workers.
func NewServer(queue *jobs.Queue, exec jobs.Executor, opts ...Option) *Server {
	s := &Server{
		queue:    queue,
		exec:     exec,
		validate: caption.NewValidator(),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.Handle(service.Endpoint, s.authenticate(http.HandlerFunc(s.handleCaption)))
	s.mux.Handle("/api/jobs", s.authenticate(http.HandlerFunc(s.handleJobs)))
	s.mux.Handle("/api/jobs/stream", s.authenticate(http.HandlerFunc(s.handleJobStream)))
	s.mux.Handle("/api/jobs/", s.authenticate(http.HandlerFunc(s.handleJobDetail)))
	s.mux.Handle("/api/settings", s.authenticate(http.HandlerFunc(s.handleSettings)))
	if s.storageDir != "" {
		s.mux.Handle("/storage/", http.StripPrefix("/storage/", s.serveStorage()))
	}
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			got := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) serveStorage() http.Handler {
	files := http.FileServer(http.Dir(s.storageDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// no directory listings
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
