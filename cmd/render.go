package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/video-captioner/internal/caption"
	"github.com/MimeLyc/video-captioner/internal/config"
	"github.com/MimeLyc/video-captioner/internal/rules"
	"github.com/MimeLyc/video-captioner/internal/service"
	"github.com/MimeLyc/video-captioner/internal/subtitle"
	"github.com/MimeLyc/video-captioner/pkg/file"
	"github.com/MimeLyc/video-captioner/pkg/log"
)

type renderOptions struct {
	video      string
	transcript string
	settings   string
	replace    string
	out        string
	srt        string
}

func newRenderCmd() *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Caption a local video file",
		Long: `Render reads a word-level transcript (JSON array of {word,start,end}) or a
cue-level SRT file, builds the caption timeline and burns it into the video.

Without --replace, a replace_rules.json found next to the video or in one of
its parent directories is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			req, err := opts.request()
			if err != nil {
				return err
			}
			res, err := runRender(ctx, cfg, req)
			if err != nil {
				return err
			}
			if opts.srt != "" {
				if err := subtitle.NewWriter().Write(opts.srt, subtitle.FromSegments(res.Timeline.Segments)); err != nil {
					return fmt.Errorf("write srt: %w", err)
				}
				log.Info("Wrote caption timeline to %s", opts.srt)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d captions, %d dropped, %.2fs)\n",
				res.OutPath, res.Timeline.Captions(), res.Timeline.Dropped, res.Duration)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.video, "video", "", "source video file")
	cmd.Flags().StringVar(&opts.transcript, "transcript", "", "transcript file (.json words or .srt cues)")
	cmd.Flags().StringVar(&opts.settings, "settings", "", "caption settings JSON file")
	cmd.Flags().StringVar(&opts.replace, "replace", "", "replacement rules JSON file")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output video (default: <video>_captioned<ext>)")
	cmd.Flags().StringVar(&opts.srt, "srt", "", "also write the caption timeline as SRT")
	_ = cmd.MarkFlagRequired("video")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

func runRender(ctx context.Context, cfg *config.Config, req service.RenderRequest) (*service.RenderResult, error) {
	defaultRules, err := loadDefaultRules(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.JobTempDir(), 0o755); err != nil {
		return nil, err
	}

	engine := newEngine(cfg)
	svc := service.NewCaptionService(nil, engine, newSegmenter(cfg), newAssembler(cfg, engine), nil,
		service.WithDefaultRules(defaultRules),
		service.WithDefaultFontFamily(cfg.Render.DefaultFontFamily),
	)
	return svc.Render(ctx, req)
}

func (o *renderOptions) request() (service.RenderRequest, error) {
	video, err := filepath.Abs(o.video)
	if err != nil {
		return service.RenderRequest{}, err
	}
	if _, err := os.Stat(video); err != nil {
		return service.RenderRequest{}, fmt.Errorf("video: %w", err)
	}

	words, err := readTranscript(o.transcript)
	if err != nil {
		return service.RenderRequest{}, err
	}

	var settings caption.Settings
	if o.settings != "" {
		data, err := os.ReadFile(o.settings)
		if err != nil {
			return service.RenderRequest{}, err
		}
		if err := json.Unmarshal(data, &settings); err != nil {
			return service.RenderRequest{}, fmt.Errorf("parse settings: %w", err)
		}
		if err := caption.NewValidator().Struct(settings); err != nil {
			return service.RenderRequest{}, fmt.Errorf("invalid settings: %w", err)
		}
	}

	replacePath := o.replace
	if replacePath == "" {
		replacePath = rules.FindInAncestors(filepath.Dir(video))
	}
	var replace []caption.ReplacementRule
	if replacePath != "" {
		if replace, err = rules.Load(replacePath); err != nil {
			return service.RenderRequest{}, err
		}
		log.Info("Using %d replacement rules from %s", len(replace), replacePath)
	}

	out := o.out
	if out == "" {
		out = file.WithSuffix(video, "_captioned")
	}
	return service.RenderRequest{
		VideoPath: video,
		Words:     words,
		Settings:  settings,
		Replace:   replace,
		OutPath:   out,
	}, nil
}

func readTranscript(path string) ([]caption.WordEntry, error) {
	if strings.EqualFold(filepath.Ext(path), ".srt") {
		f, err := subtitle.NewReader().Read(path)
		if err != nil {
			return nil, fmt.Errorf("read transcript: %w", err)
		}
		return subtitle.Words(f), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var words []caption.WordEntry
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return words, nil
}
