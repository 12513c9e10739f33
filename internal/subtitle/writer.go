package subtitle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

type srtWriter struct{}

func NewWriter() Writer {
	return srtWriter{}
}

// Write stores f as SRT at path. The file is written next to its final
// location and renamed into place, so readers never see a partial file.
func (srtWriter) Write(path string, f *File) error {
	if f == nil {
		return errors.New("no subtitle to write")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, f); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Encode writes f in SRT form. Cues are renumbered from 1 in order.
func Encode(w io.Writer, f *File) error {
	bw := bufio.NewWriter(w)
	for i, line := range f.Lines {
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(line.StartTime), srtTimestamp(line.EndTime), line.Text)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

func srtTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}
