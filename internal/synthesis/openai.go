package synthesis

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

// OpenAISynthesizer uses the OpenAI speech endpoint. The voice id must be
// one of the provider's preset voices; it cannot clone.
type OpenAISynthesizer struct {
	Client *openai.Client
	Model  string
}

func NewOpenAISynthesizer(apiKey, model string) *OpenAISynthesizer {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	return &OpenAISynthesizer{
		Client: openai.NewClient(apiKey),
		Model:  model,
	}
}

// Synthesize implements Synthesizer. Audio comes back as WAV.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string, voice types.VoiceReference) ([]byte, error) {
	if voice.VoiceID == "" {
		return nil, errors.New("openai: voice id is required")
	}
	resp, err := s.Client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice.VoiceID),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai speech read: %w", err)
	}
	return data, nil
}
