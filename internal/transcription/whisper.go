package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

// Transcriber turns a normalized recording into timed sentences.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]types.TranscriptSentence, error)
}

// WhisperTranscriber wraps Python's OpenAI Whisper for transcription
type WhisperTranscriber struct {
	modelName string
	language  string
	tempDir   string
	mu        sync.Mutex
}

// NewWhisperTranscriber creates a new transcriber using Python Whisper.
// modelPath may be a model name or a ggml file name; the size is taken from it.
func NewWhisperTranscriber(modelPath, language, tempDir string) *WhisperTranscriber {
	modelName := "small"
	for _, size := range []string{"tiny", "base", "small", "medium", "large"} {
		if strings.Contains(modelPath, size) {
			modelName = size
			break
		}
	}
	if tempDir == "" {
		tempDir = "temp"
	}

	log.Printf("Initializing Python Whisper with model: %s", modelName)
	log.Printf("Note: Whisper availability will be verified on first transcription")

	return &WhisperTranscriber{
		modelName: modelName,
		language:  language,
		tempDir:   tempDir,
	}
}

// Transcribe implements Transcriber.
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) ([]types.TranscriptSentence, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	log.Printf("Transcribing with Python Whisper: %s", audioPath)

	outDir := filepath.Join(wt.tempDir, "whisper_"+uuid.New().String())
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create whisper output dir: %v", err)
	}
	defer os.RemoveAll(outDir)

	absAudioPath, err := filepath.Abs(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %v", err)
	}

	args := []string{"-m", "whisper", absAudioPath,
		"--model", wt.modelName,
		"--output_dir", outDir,
		"--output_format", "json",
		"--fp16", "False",
	}
	if wt.language != "" {
		args = append(args, "--language", wt.language)
	}
	cmd := exec.CommandContext(ctx, "python", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %v\nOutput: %s", err, string(output))
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonData, err := os.ReadFile(filepath.Join(outDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %v", err)
	}

	sentences, err := ParseWhisper(jsonData)
	if err != nil {
		return nil, err
	}
	log.Printf("Transcription completed: %d sentences", len(sentences))
	return sentences, nil
}

// WhisperOutput matches Python Whisper's JSON output format
type WhisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []WhisperSegment `json:"segments"`
}

// WhisperSegment represents a timestamped segment from Whisper
type WhisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ParseWhisper converts Whisper's JSON document into sentences. Whisper
// numbers segments from 0 and reports seconds; sentences are numbered from 1
// in milliseconds. Blank segments are dropped.
func ParseWhisper(data []byte) ([]types.TranscriptSentence, error) {
	var out WhisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %v", err)
	}
	sentences := make([]types.TranscriptSentence, 0, len(out.Segments))
	for _, seg := range out.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		sentences = append(sentences, types.TranscriptSentence{
			SentenceID: len(sentences) + 1,
			BeginMs:    secondsToMs(seg.Start),
			EndMs:      secondsToMs(seg.End),
			Text:       text,
		})
	}
	return sentences, nil
}

func secondsToMs(s float64) int {
	return int(s*1000 + 0.5)
}
