package segmenter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/codebuildervaibhav/revoice/internal/audio"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

func writeSource(t *testing.T, dir string, ms int) string {
	t.Helper()
	path := filepath.Join(dir, "source.wav")
	if err := audio.Save(path, audio.Tone(audio.DefaultFormat, ms, 700)); err != nil {
		t.Fatalf("writing source: %v", err)
	}
	return path
}

func TestSplitOneSegmentPerSentence(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, 6000)
	transcript := []types.TranscriptSentence{
		{SentenceID: 1, BeginMs: 0, EndMs: 1500, Text: "first"},
		{SentenceID: 2, BeginMs: 1500, EndMs: 3200, Text: "second"},
		{SentenceID: 3, BeginMs: 4000, EndMs: 6000, Text: "third"},
	}

	outDir := filepath.Join(dir, "split")
	segments, err := NewSegmenter(outDir).Split(source, transcript)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(segments) != len(transcript) {
		t.Fatalf("got %d segments; want %d", len(segments), len(transcript))
	}

	for i, seg := range segments {
		want := transcript[i]
		if seg.SentenceID != want.SentenceID || seg.BeginMs != want.BeginMs ||
			seg.EndMs != want.EndMs || seg.Text != want.Text {
			t.Errorf("segment %d = %+v; want fields of %+v", i, seg, want)
		}
		if seg.ClipPath != filepath.Join(outDir, ClipName(want.SentenceID)) {
			t.Errorf("segment %d clip path = %q", i, seg.ClipPath)
		}
		clip, err := audio.Load(seg.ClipPath)
		if err != nil {
			t.Fatalf("loading clip %d: %v", i, err)
		}
		if clip.DurationMs() != want.DurationMs() {
			t.Errorf("clip %d = %dms; want %dms", i, clip.DurationMs(), want.DurationMs())
		}
	}
}

func TestSplitIsReproducible(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, 2000)
	transcript := []types.TranscriptSentence{{SentenceID: 7, BeginMs: 100, EndMs: 900, Text: "x"}}
	seg := NewSegmenter(filepath.Join(dir, "out"))

	first, err := seg.Split(source, transcript)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := os.ReadFile(first[0].ClipPath)

	transcript[0].Text = "edited text does not change the clip name"
	second, err := seg.Split(source, transcript)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(second[0].ClipPath)

	if first[0].ClipPath != second[0].ClipPath {
		t.Errorf("clip path changed between runs: %q vs %q", first[0].ClipPath, second[0].ClipPath)
	}
	if string(a) != string(b) {
		t.Errorf("clip bytes differ between runs")
	}
	if filepath.Base(second[0].ClipPath) != "sentence_7.wav" {
		t.Errorf("clip name = %q; want sentence_7.wav", filepath.Base(second[0].ClipPath))
	}
}

func TestSplitUndecodableSourceFailsFast(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "broken.wav")
	if err := os.WriteFile(source, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "split")

	segments, err := NewSegmenter(outDir).Split(source, []types.TranscriptSentence{
		{SentenceID: 1, BeginMs: 0, EndMs: 10, Text: "a"},
	})
	if !errors.Is(err, types.ErrDecode) {
		t.Fatalf("err = %v; want ErrDecode", err)
	}
	if segments != nil {
		t.Errorf("segments = %v; want nil", segments)
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Errorf("output dir should not be created on decode failure")
	}
}

func TestSplitMissingSourceIsDecodeError(t *testing.T) {
	_, err := NewSegmenter(t.TempDir()).Split(filepath.Join(t.TempDir(), "nope.wav"), nil)
	if !errors.Is(err, types.ErrDecode) {
		t.Fatalf("err = %v; want ErrDecode", err)
	}
}
