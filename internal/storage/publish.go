package storage

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Publisher pushes a local artifact to durable remote storage and returns a
// reference to it (a URL or an object URI).
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// NopPublisher keeps artifacts local only. The returned ref is empty.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string) (string, error) {
	return "", nil
}

// RetryPublisher retries a failing publisher with growing pauses between
// attempts.
type RetryPublisher struct {
	Next     Publisher
	Attempts int
	// Backoff returns the pause after the given failed attempt (1-based).
	// Nil means attempt² seconds.
	Backoff func(attempt int) time.Duration
}

// NewRetryPublisher wraps next with the default attempt count and backoff.
func NewRetryPublisher(next Publisher, attempts int) *RetryPublisher {
	return &RetryPublisher{Next: next, Attempts: attempts}
}

// Publish implements Publisher.
func (rp *RetryPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	attempts := rp.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := rp.Backoff
	if backoff == nil {
		backoff = func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		}
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var ref string
		ref, err = rp.Next.Publish(ctx, localPath)
		if err == nil {
			return ref, nil
		}
		log.Printf("Publish attempt %d/%d for %s failed: %v", attempt, attempts, localPath, err)
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("publish failed after %d attempts: %w", attempts, err)
}
