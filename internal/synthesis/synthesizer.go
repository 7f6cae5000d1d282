package synthesis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

// Synthesizer speaks text in the referenced voice and returns encoded audio
// (WAV, MP3 or anything ffmpeg can decode).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice types.VoiceReference) ([]byte, error)
}

// VoiceCloner enrolls a reference recording with a provider and returns the
// provider's id for the cloned voice.
type VoiceCloner interface {
	CloneVoice(ctx context.Context, name, samplePath string) (string, error)
}

// RetryPolicy bounds each synthesis call. Zero values mean one attempt, no
// timeout, and one second between attempts.
type RetryPolicy struct {
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
}

// Do runs fn under the policy, returning the last error if every attempt
// fails. Cancellation of ctx stops retrying.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		data, err := p.call(ctx, fn)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < attempts {
			log.Printf("Synthesis attempt %d/%d failed: %v", attempt, attempts, err)
			select {
			case <-time.After(backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if attempts > 1 {
		return nil, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
	}
	return nil, lastErr
}

func (p RetryPolicy) call(ctx context.Context, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(ctx)
}
