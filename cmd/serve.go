package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/video-captioner/internal/caption"
	"github.com/MimeLyc/video-captioner/internal/config"
	"github.com/MimeLyc/video-captioner/internal/fetch"
	"github.com/MimeLyc/video-captioner/internal/httpapi"
	"github.com/MimeLyc/video-captioner/internal/janitor"
	"github.com/MimeLyc/video-captioner/internal/jobs"
	"github.com/MimeLyc/video-captioner/internal/media"
	"github.com/MimeLyc/video-captioner/internal/persistence"
	"github.com/MimeLyc/video-captioner/internal/render"
	"github.com/MimeLyc/video-captioner/internal/rules"
	"github.com/MimeLyc/video-captioner/internal/service"
	"github.com/MimeLyc/video-captioner/internal/storage"
	"github.com/MimeLyc/video-captioner/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP captioning service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.PrepareStorage(); err != nil {
		return err
	}

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	settingsStore, err := config.NewRuntimeSettingsStore(config.RuntimeSettingsFilePath(), cfg.RuntimeSettings())
	if err != nil {
		return err
	}

	defaultRules, err := loadDefaultRules(cfg)
	if err != nil {
		return err
	}

	uploader, err := storage.New(ctx, cfg.StorageConfig())
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	engine := newEngine(cfg)
	svc := service.NewCaptionService(
		fetch.NewHTTPFetcher(cfg.JobTempDir()),
		engine,
		newSegmenter(cfg),
		newAssembler(cfg, engine),
		uploader,
		service.WithTimelineStore(store),
		service.WithNotifier(service.NewWebhookNotifier(nil)),
		service.WithDefaultRules(defaultRules),
		service.WithDefaultFontFamily(cfg.Render.DefaultFontFamily),
	)

	queue := jobs.NewQueue(cfg.System.JobWorkers, store)
	queue.Start(svc.Execute)
	defer queue.Stop()

	cronEngine := cron.New()
	jan := janitor.New(cfg.JobTempDir(), cronEngine,
		janitor.WithOrphanCleaner(store),
		janitor.WithSchedule(cfg.Cleanup.CronExpr, cfg.Cleanup.MaxAgeHours),
	)

	opts := []httpapi.Option{
		httpapi.WithAPIKey(cfg.HTTP.APIKey),
		httpapi.WithTimelineLoader(store),
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(func(next config.RuntimeSettings) error {
			if err := jan.ApplyRuntimeSettings(next); err != nil {
				return err
			}
			svc.SetDefaultFontFamily(next.DefaultFontFamily)
			return nil
		}),
	}
	if cfg.Storage.Provider == storage.ProviderLocal {
		opts = append(opts, httpapi.WithStorageDir(cfg.Storage.LocalPath))
	}
	srv := httpapi.NewServer(queue, svc.Execute, opts...)

	return runWithComponents(ctx, cfg, jan, cronEngine, srv)
}

func runWithComponents(
	ctx context.Context,
	cfg *config.Config,
	sched scheduler,
	cronEngine cronEngine,
	httpSrv httpServer,
) error {
	if err := sched.Schedule(ctx); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	cronEngine.Start()
	defer cronEngine.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe(cfg.HTTP.Addr)
	}()
	log.Info("Captioner listening on %s", cfg.HTTP.Addr)

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return ignoreServerClosed(<-errCh)
	case err := <-errCh:
		return ignoreServerClosed(err)
	}
}

func ignoreServerClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func loadDefaultRules(cfg *config.Config) ([]caption.ReplacementRule, error) {
	if cfg.Render.ReplaceRulesFile == "" {
		return nil, nil
	}
	loaded, err := rules.Load(cfg.Render.ReplaceRulesFile)
	if err != nil {
		return nil, fmt.Errorf("load replacement rules: %w", err)
	}
	log.Info("Loaded %d replacement rules from %s", len(loaded), cfg.Render.ReplaceRulesFile)
	return loaded, nil
}

func newEngine(cfg *config.Config) *media.FFmpeg {
	return media.NewFFmpeg(
		media.WithBinaries(cfg.Render.FFmpegPath, cfg.Render.FFprobePath),
		media.WithWorkDir(cfg.JobTempDir()),
	)
}

func newSegmenter(cfg *config.Config) *caption.Segmenter {
	return caption.NewSegmenter(caption.FontResolver{
		Dir:     cfg.Render.FontDir,
		Default: cfg.Render.DefaultFont,
	})
}

func newAssembler(cfg *config.Config, engine media.Engine) *render.Assembler {
	return render.NewAssembler(engine,
		render.WithConcurrency(cfg.Render.Concurrency),
		render.WithOutputDir(cfg.JobTempDir()),
	)
}
