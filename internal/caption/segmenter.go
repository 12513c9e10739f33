package caption

import (
	"errors"
	"math"
	"slices"

	"golang.org/x/text/language"

	"github.com/MimeLyc/video-captioner/pkg/log"
)

// ErrNoValidSegments is returned when no caption could be built from the
// transcript, either because it was empty or every batch was rejected.
var ErrNoValidSegments = errors.New("no valid word segments found in transcription")

// Timeline is the ordered segment list produced for one request.
type Timeline struct {
	Segments []Segment
	// Dropped counts batches rejected by the validity gate.
	Dropped  int
	Language language.Tag
}

// Captions returns the number of caption segments.
func (t *Timeline) Captions() int {
	n := 0
	for _, s := range t.Segments {
		if s.IsCaption() {
			n++
		}
	}
	return n
}

// Segmenter turns a word-level transcript into a timeline of gap and
// caption segments.
type Segmenter struct {
	Fonts FontResolver
}

func NewSegmenter(fonts FontResolver) *Segmenter {
	return &Segmenter{Fonts: fonts}
}

// Segment is Build without the bookkeeping.
func (s *Segmenter) Segment(
	words []WordEntry,
	rules []ReplacementRule,
	settings Settings,
	duration float64,
) ([]Segment, error) {
	tl, err := s.Build(words, rules, settings, duration)
	if err != nil {
		return nil, err
	}
	return tl.Segments, nil
}

// Build walks the words in input order, max_words_per_line at a time.
//
// A batch is rejected without touching the cursor when its span is
// inverted, empty, starts before zero, ends after duration, is not finite,
// or starts before the end of the previously accepted caption. A gap is
// emitted between accepted captions that do not touch. No gap is emitted
// before the first caption; a trailing gap always runs to duration.
func (s *Segmenter) Build(
	words []WordEntry,
	rules []ReplacementRule,
	settings Settings,
	duration float64,
) (*Timeline, error) {
	settings = settings.WithDefaults()

	tl := &Timeline{
		Segments: make([]Segment, 0, len(words)/settings.MaxWordsPerLine+2),
		Language: language.Und,
	}

	var accepted [][]WordEntry
	previousEnd := 0.0
	for batchIdx, batch := range Batches(words, settings.MaxWordsPerLine) {
		batchStart := batch[0].Start
		batchEnd := batch[len(batch)-1].End

		if reason := rejectReason(batchStart, batchEnd, previousEnd, duration); reason != "" {
			log.Debug("Dropping batch %d [%v, %v]: %s", batchIdx, batchStart, batchEnd, reason)
			tl.Dropped++
			continue
		}
		accepted = append(accepted, batch)
		previousEnd = batchEnd
	}

	if len(accepted) == 0 {
		return nil, ErrNoValidSegments
	}

	// Casing locale comes from accepted words only; a dropped entry must
	// not change how the surviving captions read.
	if settings.AllCaps {
		tl.Language = DetectLanguage(slices.Concat(accepted...))
	}
	normalizer := NewNormalizer(rules, settings.AllCaps, tl.Language)
	style := s.ResolveStyle(settings)

	previousEnd = 0
	for _, batch := range accepted {
		batchStart := batch[0].Start
		batchEnd := batch[len(batch)-1].End
		if previousEnd > 0 && batchStart > previousEnd {
			tl.Segments = append(tl.Segments, Gap(previousEnd, batchStart))
		}
		tl.Segments = append(tl.Segments, Caption(batchStart, batchEnd, normalizer.Join(batch), style))
		previousEnd = batchEnd
	}

	if previousEnd < duration {
		tl.Segments = append(tl.Segments, Gap(previousEnd, duration))
	}
	return tl, nil
}

// ResolveStyle derives the caption style shared by every caption of a request.
func (s *Segmenter) ResolveStyle(settings Settings) Style {
	settings = settings.WithDefaults()
	vertical, horizontal := ResolveAnchor(settings.Position)

	outlineWidth := 0
	if settings.OutlineColor != "" {
		outlineWidth = DefaultOutlineWidth
	}

	return Style{
		FontPath:     s.Fonts.Resolve(settings.FontFamily),
		FontSize:     settings.FontSize,
		FillColor:    settings.WordColor,
		OutlineColor: settings.OutlineColor,
		OutlineWidth: outlineWidth,
		BoxColor:     settings.LineColor,
		Vertical:     vertical,
		Horizontal:   horizontal,
		TextAlign:    settings.Alignment,
		X:            settings.X,
		Y:            settings.Y,
	}
}

// Batches splits words into consecutive groups of size n, keeping input
// order. The last group may be shorter.
func Batches(words []WordEntry, n int) [][]WordEntry {
	if n < 1 {
		n = 1
	}
	ret := make([][]WordEntry, 0, (len(words)+n-1)/n)
	for i := 0; i < len(words); i += n {
		end := min(i+n, len(words))
		ret = append(ret, words[i:end])
	}
	return ret
}

func rejectReason(start, end, previousEnd, duration float64) string {
	switch {
	case !isFinite(start) || !isFinite(end):
		return "non-finite timestamp"
	case end < start:
		return "end before start"
	case end == start:
		return "zero length"
	case start < 0:
		return "negative start"
	case end > duration:
		return "ends after video"
	case start < previousEnd:
		return "overlaps previous caption"
	default:
		return ""
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
