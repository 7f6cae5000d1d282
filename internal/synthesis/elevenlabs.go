package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

// ElevenLabsSynthesizer speaks with ElevenLabs voices, including voices
// cloned from a reference recording.
type ElevenLabsSynthesizer struct {
	APIKey  string
	ModelID string
	BaseURL string
	Client  *http.Client
}

func NewElevenLabsSynthesizer(apiKey, modelID string) *ElevenLabsSynthesizer {
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	return &ElevenLabsSynthesizer{
		APIKey:  apiKey,
		ModelID: modelID,
		BaseURL: elevenLabsBaseURL,
		Client:  http.DefaultClient,
	}
}

// Synthesize implements Synthesizer. Audio comes back as MP3.
func (c *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string, voice types.VoiceReference) ([]byte, error) {
	if voice.VoiceID == "" {
		return nil, errors.New("elevenlabs: voice id is required")
	}
	base, err := url.Parse(fmt.Sprintf("%s/text-to-speech/%s", c.BaseURL, url.PathEscape(voice.VoiceID)))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: bad url: %w", err)
	}
	q := base.Query()
	q.Set("output_format", "mp3_44100_128")
	base.RawQuery = q.Encode()

	payload := map[string]interface{}{
		"text":     text,
		"model_id": c.ModelID,
		"voice_settings": map[string]float64{
			"stability":        0.75,
			"similarity_boost": 0.7,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// CloneVoice implements VoiceCloner using instant voice cloning.
func (c *ElevenLabsSynthesizer) CloneVoice(ctx context.Context, name, samplePath string) (string, error) {
	sample, err := os.Open(samplePath)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: open sample: %w", err)
	}
	defer sample.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("name", name); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("files", filepath.Base(samplePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, sample); err != nil {
		return "", fmt.Errorf("elevenlabs: read sample: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/voices/add", &body)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	data, err := c.do(req)
	if err != nil {
		return "", err
	}
	var out struct {
		VoiceID string `json:"voice_id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("elevenlabs: decode response: %w", err)
	}
	if out.VoiceID == "" {
		return "", errors.New("elevenlabs: response has no voice_id")
	}
	return out.VoiceID, nil
}

func (c *ElevenLabsSynthesizer) do(req *http.Request) ([]byte, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: bad status: %s: %s", resp.Status, truncate(data, 200))
	}
	return data, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
