package types

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match these with errors.Is.
var (
	ErrDecode        = errors.New("audio decode failed")
	ErrNotFound      = errors.New("not found")
	ErrMerge         = errors.New("merge failed")
	ErrSynthesis     = errors.New("synthesis failed")
	ErrTimelineOrder = errors.New("timeline out of order")
)

// DecodeError reports unreadable source or clip audio.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error        { return e.Err }
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// NotFoundError reports a lookup miss. Kind is "sentence", "session" or "job".
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// MergeError reports a failed export of the reconstructed track.
type MergeError struct {
	Path string
	Err  error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge export %s: %v", e.Path, e.Err)
}

func (e *MergeError) Unwrap() error        { return e.Err }
func (e *MergeError) Is(target error) bool { return target == ErrMerge }

// SynthesisError reports a failed re-synthesis of one sentence.
type SynthesisError struct {
	SentenceID int
	Err        error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("sentence %d: synthesis: %v", e.SentenceID, e.Err)
}

func (e *SynthesisError) Unwrap() error        { return e.Err }
func (e *SynthesisError) Is(target error) bool { return target == ErrSynthesis }

// TimelineOrderError reports entries whose sentence_id order disagrees with
// their chronological order, or whose slots overlap.
type TimelineOrderError struct {
	Prev   int
	Next   int
	Reason string
}

func (e *TimelineOrderError) Error() string {
	return fmt.Sprintf("timeline order: sentence %d -> %d: %s", e.Prev, e.Next, e.Reason)
}

func (e *TimelineOrderError) Is(target error) bool { return target == ErrTimelineOrder }
