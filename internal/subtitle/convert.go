package subtitle

import (
	"math"
	"strings"
	"time"

	"github.com/MimeLyc/video-captioner/internal/caption"
)

// Words turns cues into a word-level transcript. Cue-level SRT carries no
// per-word timing, so each cue's span is shared across its words in
// proportion to their length.
func Words(f *File) []caption.WordEntry {
	if f == nil {
		return nil
	}
	var words []caption.WordEntry
	for _, line := range f.Lines {
		tokens := strings.Fields(line.Text)
		if len(tokens) == 0 {
			continue
		}

		totalRunes := 0
		for _, tok := range tokens {
			totalRunes += len([]rune(tok))
		}

		start := line.StartTime.Seconds()
		span := line.EndTime.Seconds() - start
		consumed := 0
		for i, tok := range tokens {
			wordStart := start + span*float64(consumed)/float64(totalRunes)
			consumed += len([]rune(tok))
			wordEnd := start + span*float64(consumed)/float64(totalRunes)
			if i == len(tokens)-1 {
				wordEnd = line.EndTime.Seconds()
			}
			words = append(words, caption.WordEntry{
				Word:  tok,
				Start: roundMillis(wordStart),
				End:   roundMillis(wordEnd),
			})
		}
	}
	return words
}

// FromSegments exports the caption segments of a timeline as cues.
func FromSegments(segments []caption.Segment) *File {
	f := &File{Format: "SRT"}
	for _, seg := range segments {
		if !seg.IsCaption() {
			continue
		}
		f.Lines = append(f.Lines, Line{
			Index:     len(f.Lines) + 1,
			StartTime: seconds(seg.Start),
			EndTime:   seconds(seg.End),
			Text:      seg.Text,
		})
	}
	return f
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * 1000)) * time.Millisecond
}

func roundMillis(s float64) float64 {
	return math.Round(s*1000) / 1000
}
