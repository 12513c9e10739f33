package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/MimeLyc/video-captioner/internal/caption"
	"github.com/MimeLyc/video-captioner/pkg/file"
	"github.com/MimeLyc/video-captioner/pkg/log"
)

// commandRunner runs a binary and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

type FFmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string
	workDir    string
	run        commandRunner
}

type Option func(*FFmpeg)

func WithBinaries(ffmpegCmd, ffprobeCmd string) Option {
	return func(f *FFmpeg) {
		if ffmpegCmd != "" {
			f.ffmpegCmd = ffmpegCmd
		}
		if ffprobeCmd != "" {
			f.ffprobeCmd = ffprobeCmd
		}
	}
}

// WithWorkDir sets where intermediate clips are written.
func WithWorkDir(dir string) Option {
	return func(f *FFmpeg) {
		f.workDir = dir
	}
}

func withCommandRunner(run commandRunner) Option {
	return func(f *FFmpeg) {
		if run != nil {
			f.run = run
		}
	}
}

func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
		workDir:    os.TempDir(),
		run:        defaultCommandRunner,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	output, err := f.run(ctx, f.ffprobeCmd, f.probeArgs(path)...)
	if err != nil {
		log.Error("Failed to run ffprobe on %s: %v", path, err)
		return 0, err
	}

	var probeResult struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probeResult); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(probeResult.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probeResult.Format.Duration, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("media %s has no duration", path)
	}
	return duration, nil
}

func (f *FFmpeg) ExtractClip(ctx context.Context, source string, start, end float64) (Clip, error) {
	if end <= start {
		return Clip{}, fmt.Errorf("invalid clip range [%v, %v]", start, end)
	}
	clip := Clip{
		Path:  f.tempPath("clip", ".mp4"),
		Start: start,
		End:   end,
	}
	if _, err := f.run(ctx, f.ffmpegCmd, f.extractArgs(source, clip)...); err != nil {
		_ = os.Remove(clip.Path)
		return Clip{}, fmt.Errorf("extract clip [%s, %s]: %w", formatSeconds(start), formatSeconds(end), err)
	}
	return clip, nil
}

func (f *FFmpeg) OverlayText(ctx context.Context, clip Clip, style caption.Style, text string) (Clip, error) {
	out := Clip{
		Path:  f.tempPath("caption", ".mp4"),
		Start: clip.Start,
		End:   clip.End,
	}
	textFile := file.ReplaceExt(out.Path, ".txt")
	if err := os.WriteFile(textFile, []byte(text), 0o600); err != nil {
		return Clip{}, fmt.Errorf("write caption text: %w", err)
	}
	defer os.Remove(textFile)

	if _, err := f.run(ctx, f.ffmpegCmd, f.overlayArgs(clip.Path, DrawTextFilter(style, textFile), out.Path)...); err != nil {
		_ = os.Remove(out.Path)
		return Clip{}, fmt.Errorf("overlay text: %w", err)
	}
	return out, nil
}

func (f *FFmpeg) Concatenate(ctx context.Context, clips []Clip, outPath string) error {
	if len(clips) == 0 {
		return errors.New("nothing to concatenate")
	}

	listFile := f.tempPath("concat", ".txt")
	if err := os.WriteFile(listFile, []byte(concatList(clips)), 0o600); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listFile)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if _, err := f.run(ctx, f.ffmpegCmd, f.concatArgs(listFile, outPath)...); err != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("concatenate %d clips: %w", len(clips), err)
	}
	return nil
}

func (f *FFmpeg) Release(clip Clip) error {
	if clip.Path == "" {
		return nil
	}
	if err := os.Remove(clip.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FFmpeg) tempPath(prefix, ext string) string {
	return filepath.Join(f.workDir, prefix+"-"+uuid.NewString()+ext)
}

func (*FFmpeg) probeArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	}
}

// extractArgs re-encodes so cuts are frame accurate and every clip shares
// codecs, which the concat demuxer relies on.
func (*FFmpeg) extractArgs(source string, clip Clip) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(clip.Start),
		"-i", source,
		"-t", formatSeconds(clip.End - clip.Start),
		"-c:v", "libx264", "-preset", "veryfast",
		"-c:a", "aac",
		"-avoid_negative_ts", "make_zero",
		clip.Path,
	}
}

func (*FFmpeg) overlayArgs(input, filter, output string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vf", filter,
		"-c:v", "libx264", "-preset", "veryfast",
		"-c:a", "copy",
		output,
	}
}

func (*FFmpeg) concatArgs(listFile, output string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	}
}

func concatList(clips []Clip) string {
	var b strings.Builder
	for _, clip := range clips {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(clip.Path, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmdPath, err := exec.LookPath(name)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, cmdPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		if msg != "" {
			return output, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, msg)
		}
		return output, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	return output, nil
}
