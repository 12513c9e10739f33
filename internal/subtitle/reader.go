package subtitle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// 00:02:16,612 --> 00:02:19,376 (a dot separator is accepted too)
var srtTimeRe = regexp.MustCompile(`(\d{2,}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2,}):(\d{2}):(\d{2})[,.](\d{3})`)

type srtReader struct{}

func NewReader() Reader {
	return srtReader{}
}

// Read parses an .srt file.
func (srtReader) Read(path string) (*File, error) {
	if !strings.EqualFold(filepath.Ext(path), ".srt") {
		return nil, fmt.Errorf("not an srt file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subtitle: %w", err)
	}
	defer f.Close()

	return readSRT(f, path)
}

// ReadSRTBytes parses SRT content already in memory. path is only recorded.
func ReadSRTBytes(data []byte, path string) (*File, error) {
	return readSRT(bytes.NewReader(data), path)
}

// readSRT splits the input into blank-line separated blocks. A block is a
// cue when it has a timing line; the numeric index before it is optional
// and cues are renumbered in file order.
func readSRT(r io.Reader, path string) (*File, error) {
	var (
		lines []Line
		block []string
	)
	flush := func() error {
		defer func() { block = block[:0] }()
		cue, ok, err := parseBlock(block)
		if err != nil || !ok {
			return err
		}
		cue.Index = len(lines) + 1
		lines = append(lines, cue)
		return nil
	}

	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		text := scanner.Text()
		if first {
			text = strings.TrimPrefix(text, "\ufeff")
			first = false
		}
		text = strings.TrimSpace(text)
		if text == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read subtitle: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return &File{
		Lines:    lines,
		Language: detectLanguage(lines),
		Format:   "SRT",
		Path:     path,
	}, nil
}

func parseBlock(block []string) (Line, bool, error) {
	timing := -1
	for i, l := range block {
		if strings.Contains(l, "-->") {
			timing = i
			break
		}
	}
	if timing < 0 || timing > 1 {
		return Line{}, false, nil
	}

	start, end, err := parseSRTTime(block[timing])
	if err != nil {
		return Line{}, false, err
	}
	text := block[timing+1:]
	if len(text) == 0 {
		return Line{}, false, nil
	}
	return Line{
		StartTime: start,
		EndTime:   end,
		Text:      strings.Join(text, "\n"),
	}, true, nil
}

func parseSRTTime(s string) (time.Duration, time.Duration, error) {
	m := srtTimeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid srt timing %q", s)
	}
	return clock(m[1:5]), clock(m[5:9]), nil
}

// clock turns [hh mm ss mmm] into a duration.
func clock(parts []string) time.Duration {
	units := []time.Duration{time.Hour, time.Minute, time.Second, time.Millisecond}
	var d time.Duration
	for i, p := range parts {
		n, _ := strconv.Atoi(p)
		d += time.Duration(n) * units[i]
	}
	return d
}

// detectLanguage takes a majority vote of per-cue detections
func detectLanguage(lines []Line) language.Tag {
	if len(lines) == 0 {
		return language.Und
	}

	votes := make(map[string]int)
	for _, line := range lines {
		votes[whatlanggo.DetectLang(line.Text).Iso6391()]++
	}

	var top string
	var topCount int
	for lang, count := range votes {
		if count > topCount || (count == topCount && lang < top) {
			top, topCount = lang, count
		}
	}

	tag, err := language.Parse(top)
	if err != nil {
		return language.Und
	}
	return tag
}
