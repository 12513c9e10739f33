package media

import (
	"context"

	"github.com/MimeLyc/video-captioner/internal/caption"
)

// Clip is a handle to an intermediate rendered file. Whoever receives a Clip
// from an Engine must hand it back to Release.
type Clip struct {
	Path  string
	Start float64
	End   float64
}

// Engine cuts, decorates and joins video clips.
type Engine interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ExtractClip(ctx context.Context, source string, start, end float64) (Clip, error)
	OverlayText(ctx context.Context, clip Clip, style caption.Style, text string) (Clip, error)
	Concatenate(ctx context.Context, clips []Clip, outPath string) error
	Release(clip Clip) error
}
