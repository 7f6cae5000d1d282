package audio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "clip.wav")
	want := Tone(DefaultFormat, 320, 1200)

	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Format != want.Format {
		t.Errorf("format = %+v; want %+v", got.Format, want.Format)
	}
	if got.DurationMs() != 320 {
		t.Errorf("duration = %d; want 320", got.DurationMs())
	}
	for i := range want.Samples {
		if got.Samples[i] != want.Samples[i] {
			t.Fatalf("sample %d = %d; want %d", i, got.Samples[i], want.Samples[i])
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !IsWAV(data) {
		t.Errorf("saved file lacks RIFF/WAVE header")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.wav"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file err = %v; want fs.ErrNotExist", err)
	}

	junk := filepath.Join(dir, "junk.wav")
	if err := os.WriteFile(junk, []byte("this is not audio at all"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = Load(junk)
	if !errors.Is(err, types.ErrDecode) {
		t.Errorf("junk file err = %v; want ErrDecode", err)
	}
	var de *types.DecodeError
	if !errors.As(err, &de) || de.Path != junk {
		t.Errorf("expected *DecodeError for %s, got %#v", junk, err)
	}
}

func TestIsWAV(t *testing.T) {
	if IsWAV([]byte("ID3\x03mp3 data here")) {
		t.Errorf("mp3 detected as wav")
	}
	if IsWAV([]byte("RIFF")) {
		t.Errorf("truncated header detected as wav")
	}
}
