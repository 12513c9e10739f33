package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/video-captioner/internal/config"
	"github.com/MimeLyc/video-captioner/pkg/log"
)

var envFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "captioner",
		Short: "Burn word-timed captions into videos",
		Long: `captioner turns a word-level transcript into a caption timeline and renders
it onto the source video with ffmpeg. It runs either as an HTTP service or
as a one-off local render.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default: $ENV_FILE or ./.env)")

	root.AddCommand(newServeCmd(), newRenderCmd())
	return root
}

// loadConfig reads the environment, overlays persisted runtime settings and
// initializes the global logger.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := os.Setenv("ENV_FILE", envFile); err != nil {
			return nil, err
		}
	}

	var opts []config.Option
	settingsPath := config.RuntimeSettingsFilePath()
	settings, err := config.LoadRuntimeSettingsFile(settingsPath)
	switch {
	case err == nil:
		opts = append(opts, config.WithRuntimeSettings(settings))
	case !os.IsNotExist(err):
		log.Warn("Ignoring runtime settings file %s: %v", settingsPath, err)
	}

	cfg, err := config.New(opts...)
	if err != nil {
		return nil, err
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel), cfg.System.LogFormat)
	return cfg, nil
}
