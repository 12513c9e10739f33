package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/video-captioner/internal/caption"
	"github.com/MimeLyc/video-captioner/internal/media"
	"github.com/MimeLyc/video-captioner/pkg/log"
)

// RenderFailure reports which segment could not be rendered.
type RenderFailure struct {
	SegmentIndex int
	Cause        error
}

func (e *RenderFailure) Error() string {
	return fmt.Sprintf("render segment %d: %v", e.SegmentIndex, e.Cause)
}

func (e *RenderFailure) Unwrap() error {
	return e.Cause
}

// Assembler renders a timeline against its source video and joins the
// pieces into one output file.
type Assembler struct {
	engine      media.Engine
	concurrency int
	outputDir   string
}

type Option func(*Assembler)

// WithConcurrency bounds how many segments render at once.
func WithConcurrency(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithOutputDir(dir string) Option {
	return func(a *Assembler) {
		if dir != "" {
			a.outputDir = dir
		}
	}
}

func NewAssembler(engine media.Engine, opts ...Option) *Assembler {
	a := &Assembler{
		engine:      engine,
		concurrency: 1,
		outputDir:   os.TempDir(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble renders every segment and concatenates the results in timeline
// order. Intermediate clips are released whether or not rendering succeeds.
func (a *Assembler) Assemble(ctx context.Context, segments []caption.Segment, source string) (string, error) {
	if len(segments) == 0 {
		return "", &RenderFailure{SegmentIndex: -1, Cause: fmt.Errorf("empty timeline")}
	}
	start := time.Now()

	tracker := &clipTracker{}
	defer func() {
		for _, err := range tracker.releaseAll(a.engine) {
			log.Warn("Failed to release intermediate clip: %v", err)
		}
	}()

	rendered := make([]media.Clip, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, seg := range segments {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			clip, err := a.renderSegment(gctx, seg, source, tracker)
			if err != nil {
				return &RenderFailure{SegmentIndex: i, Cause: err}
			}
			rendered[i] = clip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	outPath := filepath.Join(a.outputDir, uuid.NewString()+".mp4")
	if err := a.engine.Concatenate(ctx, rendered, outPath); err != nil {
		_ = os.Remove(outPath)
		return "", &RenderFailure{SegmentIndex: -1, Cause: err}
	}
	log.Info("Assembled %d segments into %s in %s", len(segments), outPath, log.Since(start))
	return outPath, nil
}

func (a *Assembler) renderSegment(
	ctx context.Context,
	seg caption.Segment,
	source string,
	tracker *clipTracker,
) (media.Clip, error) {
	if err := ctx.Err(); err != nil {
		return media.Clip{}, err
	}
	clip, err := a.engine.ExtractClip(ctx, source, seg.Start, seg.End)
	if err != nil {
		return media.Clip{}, err
	}
	tracker.add(clip)
	if !seg.IsCaption() || seg.Style == nil {
		return clip, nil
	}

	captioned, err := a.engine.OverlayText(ctx, clip, *seg.Style, seg.Text)
	if err != nil {
		return media.Clip{}, err
	}
	tracker.add(captioned)
	return captioned, nil
}

type clipTracker struct {
	mu    sync.Mutex
	clips []media.Clip
}

func (t *clipTracker) add(c media.Clip) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clips = append(t.clips, c)
}

func (t *clipTracker) releaseAll(engine media.Engine) []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	for _, c := range t.clips {
		if err := engine.Release(c); err != nil {
			errs = append(errs, err)
		}
	}
	t.clips = nil
	return errs
}
