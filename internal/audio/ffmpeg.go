package audio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

// Normalize converts any audio file ffmpeg can read to 16kHz mono 16-bit WAV
// at outputPath.
func Normalize(inputPath, outputPath string) error {
	return Transcode(inputPath, outputPath, DefaultFormat)
}

// Transcode converts inputPath to PCM WAV in format f.
func Transcode(inputPath, outputPath string, f Format) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}
	err := ffmpeg.Input(inputPath).
		Output(outputPath, ffmpeg.KwArgs{
			"ar":  f.SampleRate,
			"ac":  f.Channels,
			"c:a": fmt.Sprintf("pcm_s%dle", f.BitDepth),
		}).
		OverWriteOutput().
		Silent(true).
		Run()
	if err != nil {
		return &types.DecodeError{Path: inputPath, Err: fmt.Errorf("ffmpeg failed: %v", err)}
	}
	return nil
}

// ValidateAudioFormat checks if the file format is supported
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	supportedFormats := []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".webm", ".aac", ".wma"}

	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

type probeData struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// ProbeDurationMs asks ffprobe for the container duration of path.
func ProbeDurationMs(path string) (int, error) {
	data, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, &types.DecodeError{Path: path, Err: err}
	}
	var probe probeData
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return 0, &types.DecodeError{Path: path, Err: err}
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return 0, &types.DecodeError{Path: path, Err: fmt.Errorf("bad duration %q", probe.Format.Duration)}
	}
	return int(seconds * 1000), nil
}

// FFmpegStretcher changes tempo with ffmpeg's atempo filter, which keeps
// pitch. The result is padded or trimmed to the exact requested length
// because atempo output length is only approximate.
type FFmpegStretcher struct {
	TempDir string
}

// Stretch implements Stretcher.
func (s FFmpegStretcher) Stretch(c *Clip, frames int) (*Clip, error) {
	if frames <= 0 || c.Frames() == 0 {
		return resample(c, frames), nil
	}
	dir := s.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	id := uuid.New().String()
	in := filepath.Join(dir, fmt.Sprintf("atempo_in_%s.wav", id))
	out := filepath.Join(dir, fmt.Sprintf("atempo_out_%s.wav", id))
	defer os.Remove(in)
	defer os.Remove(out)

	if err := Save(in, c); err != nil {
		return nil, err
	}
	factor := float64(c.Frames()) / float64(frames)
	err := ffmpeg.Input(in).
		Output(out, ffmpeg.KwArgs{
			"filter:a": AtempoChain(factor),
			"c:a":      fmt.Sprintf("pcm_s%dle", c.Format.BitDepth),
		}).
		OverWriteOutput().
		Silent(true).
		Run()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg atempo failed: %v", err)
	}
	stretched, err := Load(out)
	if err != nil {
		return nil, err
	}
	return fitFrames(stretched.Convert(c.Format), frames), nil
}

// AtempoChain builds an atempo filter for factor. Older ffmpeg builds cap a
// single atempo stage to [0.5, 2.0], so larger factors are chained.
func AtempoChain(factor float64) string {
	var stages []string
	for factor > 2.0 {
		stages = append(stages, "atempo=2.0")
		factor /= 2.0
	}
	for factor < 0.5 {
		stages = append(stages, "atempo=0.5")
		factor /= 0.5
	}
	stages = append(stages, "atempo="+strconv.FormatFloat(factor, 'f', 6, 64))
	return strings.Join(stages, ",")
}
