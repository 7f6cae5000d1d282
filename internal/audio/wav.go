package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

const wavPCM = 1

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// Decode reads a PCM WAV stream. Any failure is a *types.DecodeError.
func Decode(r io.ReadSeeker, name string) (*Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, &types.DecodeError{Path: name, Err: errors.New("not a valid wav file")}
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, &types.DecodeError{Path: name, Err: err}
	}
	if buf == nil || buf.Format == nil {
		return nil, &types.DecodeError{Path: name, Err: errors.New("missing pcm format")}
	}
	f := Format{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   int(d.BitDepth),
	}
	if !f.Valid() {
		return nil, &types.DecodeError{Path: name, Err: fmt.Errorf("unsupported format %+v", f)}
	}
	return &Clip{Format: f, Samples: buf.Data}, nil
}

// Load decodes the WAV file at path. A missing file is returned as the
// underlying os error (test with errors.Is(err, fs.ErrNotExist)); anything
// unreadable is a *types.DecodeError.
func Load(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, path)
}

// Encode writes the clip as PCM WAV.
func Encode(w io.WriteSeeker, c *Clip) error {
	enc := wav.NewEncoder(w, c.Format.SampleRate, c.Format.BitDepth, c.Format.Channels, wavPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: c.Format.Channels,
			SampleRate:  c.Format.SampleRate,
		},
		Data:           c.Samples,
		SourceBitDepth: c.Format.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write pcm: %v", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav: %v", err)
	}
	return nil
}

// Save writes the clip to path, creating parent directories. The file is
// written under a temporary name and renamed so readers never see a
// half-written clip.
func Save(path string, c *Clip) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.wav")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %v", err)
	}
	tmpPath := tmp.Name()
	if err := Encode(tmp, c); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %v", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move %s into place: %v", path, err)
	}
	return nil
}
