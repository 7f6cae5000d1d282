package subtitle

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/codebuildervaibhav/revoice/internal/registry"
)

// Cue is one caption block.
type Cue struct {
	Index   int    `json:"index"`
	StartMs int    `json:"start_time"`
	EndMs   int    `json:"end_time"`
	Text    string `json:"text"`
}

// Track is an ordered caption track.
type Track struct {
	Cues []Cue `json:"cues"`
}

// Emit derives captions from a snapshot: one cue per entry in sentence id
// order, numbered from 1, with boundaries copied from the entry's slot.
func Emit(snap *registry.Snapshot) *Track {
	track := &Track{Cues: make([]Cue, 0, snap.Len())}
	for i := 0; i < snap.Len(); i++ {
		seg := snap.At(i)
		track.Cues = append(track.Cues, Cue{
			Index:   i + 1,
			StartMs: seg.BeginMs,
			EndMs:   seg.EndMs,
			Text:    seg.Text,
		})
	}
	return track
}

// FormatTimestamp renders milliseconds as HH:MM:SS,mmm. Hours are not
// wrapped and grow past two digits when needed.
func FormatTimestamp(ms int) string {
	hours := ms / 3600000
	ms %= 3600000
	minutes := ms / 60000
	ms %= 60000
	seconds := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// WriteTo writes the track in SRT cue grammar: index line, time range line,
// text line, blank separator.
func (t *Track) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, cue := range t.Cues {
		n, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			cue.Index, FormatTimestamp(cue.StartMs), FormatTimestamp(cue.EndMs), cue.Text)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// String returns the SRT document.
func (t *Track) String() string {
	var buf bytes.Buffer
	t.WriteTo(&buf)
	return buf.String()
}

// Write saves the track as an SRT file at path.
func Write(path string, t *Track) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create subtitle directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(t.String()), 0644); err != nil {
		return fmt.Errorf("failed to write subtitles: %v", err)
	}
	return nil
}
