package subtitle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/video-captioner/internal/caption"
)

func TestWords(t *testing.T) {
	file := &File{Lines: []Line{
		{Index: 1, StartTime: 0, EndTime: 2 * time.Second, Text: "ab cd"},
		{Index: 2, StartTime: 3 * time.Second, EndTime: 4 * time.Second, Text: "solo"},
		{Index: 3, StartTime: 5 * time.Second, EndTime: 6 * time.Second, Text: "   "},
	}}

	assert.Equal(t, []caption.WordEntry{
		{Word: "ab", Start: 0, End: 1},
		{Word: "cd", Start: 1, End: 2},
		{Word: "solo", Start: 3, End: 4},
	}, Words(file))
	assert.Nil(t, Words(nil))
}

func TestFromSegmentsRoundTrip(t *testing.T) {
	style := caption.Style{FontSize: 24}
	segments := []caption.Segment{
		caption.Caption(0, 0.5, "HELLO", style),
		caption.Gap(0.5, 1.25),
		caption.Caption(1.25, 2, "WORLD", style),
		caption.Gap(2, 5),
	}

	file := FromSegments(segments)
	require.Len(t, file.Lines, 2)
	assert.Equal(t, 2, file.Lines[1].Index)
	assert.Equal(t, 1250*time.Millisecond, file.Lines[1].StartTime)

	path := filepath.Join(t.TempDir(), "out.srt")
	require.NoError(t, NewWriter().Write(path, file))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:00,500\nHELLO\n\n2\n00:00:01,250 --> 00:00:02,000\nWORLD\n\n", string(content))

	back, err := NewReader().Read(path)
	require.NoError(t, err)
	assert.Equal(t, file.Lines, back.Lines)
}

func TestWriter_NilFile(t *testing.T) {
	assert.Error(t, NewWriter().Write(filepath.Join(t.TempDir(), "x.srt"), nil))
}
