package subtitle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/codebuildervaibhav/revoice/internal/registry"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

func snapshot(t *testing.T, segs ...types.Segment) *registry.Snapshot {
	t.Helper()
	snap, err := registry.NewSnapshot(segs)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, "00:00:00,000"},
		{1000, "00:00:01,000"},
		{10933, "00:00:10,933"},
		{61001, "00:01:01,001"},
		{3600000, "01:00:00,000"},
		{3723456, "01:02:03,456"},
		{100 * 3600000, "100:00:00,000"},
	}
	for _, tc := range tests {
		if got := FormatTimestamp(tc.ms); got != tc.want {
			t.Errorf("FormatTimestamp(%d) = %q; want %q", tc.ms, got, tc.want)
		}
	}
}

func TestEmitBoundariesMatchSlots(t *testing.T) {
	snap := snapshot(t,
		types.Segment{SentenceID: 2, BeginMs: 1000, EndMs: 3000, Text: "world"},
		types.Segment{SentenceID: 1, BeginMs: 0, EndMs: 1000, Text: "hello"},
	)
	track := Emit(snap)
	if len(track.Cues) != 2 {
		t.Fatalf("got %d cues; want 2", len(track.Cues))
	}
	want := []Cue{
		{Index: 1, StartMs: 0, EndMs: 1000, Text: "hello"},
		{Index: 2, StartMs: 1000, EndMs: 3000, Text: "world"},
	}
	for i := range want {
		if track.Cues[i] != want[i] {
			t.Errorf("cue %d = %+v; want %+v", i, track.Cues[i], want[i])
		}
	}
}

func TestSRTDocument(t *testing.T) {
	snap := snapshot(t,
		types.Segment{SentenceID: 1, BeginMs: 0, EndMs: 10933, Text: "七年前，他回到家乡。"},
		types.Segment{SentenceID: 2, BeginMs: 10933, EndMs: 20140, Text: "Second line."},
	)
	want := "1\n00:00:00,000 --> 00:00:10,933\n七年前，他回到家乡。\n\n" +
		"2\n00:00:10,933 --> 00:00:20,140\nSecond line.\n\n"

	got := Emit(snap).String()
	if got != want {
		t.Errorf("SRT mismatch\n got: %q\nwant: %q", got, want)
	}
	if again := Emit(snap).String(); again != got {
		t.Errorf("output is not reproducible")
	}
}

func TestEmitEmpty(t *testing.T) {
	track := Emit(snapshot(t))
	if len(track.Cues) != 0 {
		t.Errorf("got %d cues; want 0", len(track.Cues))
	}
	if track.String() != "" {
		t.Errorf("empty track rendered %q", track.String())
	}
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subtitle", "generated_subtitles.srt")
	track := Emit(snapshot(t, types.Segment{SentenceID: 1, BeginMs: 5, EndMs: 10, Text: "a"}))
	if err := Write(path, track); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "1\n00:00:00,005 --> 00:00:00,010\na\n\n" {
		t.Errorf("file = %q", data)
	}
}
