package transcription

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

// paraformerResult is the recognizer's result document. Only the first
// transcript (channel) is used.
type paraformerResult struct {
	Transcripts []struct {
		Sentences []types.TranscriptSentence `json:"sentences"`
	} `json:"transcripts"`
}

// ParseParaformer reads a recognizer result document of the form
// {"transcripts":[{"sentences":[{sentence_id, begin_time, end_time, text}]}]}.
func ParseParaformer(data []byte) ([]types.TranscriptSentence, error) {
	var res paraformerResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}
	if len(res.Transcripts) == 0 {
		return nil, errors.New("transcript has no channels")
	}
	return res.Transcripts[0].Sentences, nil
}

// LoadTranscript reads a transcript file. Both the recognizer result
// document and a plain sentence array are accepted.
func LoadTranscript(path string) ([]types.TranscriptSentence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTranscript(data)
}

// ParseTranscript accepts a plain sentence array or a recognizer result
// document.
func ParseTranscript(data []byte) ([]types.TranscriptSentence, error) {
	var sentences []types.TranscriptSentence
	if err := json.Unmarshal(data, &sentences); err == nil {
		return sentences, nil
	}
	return ParseParaformer(data)
}

// SaveTranscript writes sentences in the recognizer result layout so that
// the file round-trips through LoadTranscript and ParseParaformer.
func SaveTranscript(path string, sentences []types.TranscriptSentence) error {
	if sentences == nil {
		sentences = []types.TranscriptSentence{}
	}
	doc := map[string]any{
		"transcripts": []map[string]any{{"sentences": sentences}},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}
	return os.WriteFile(path, data, 0644)
}
