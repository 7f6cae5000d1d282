package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/codebuildervaibhav/revoice/internal/registry"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

// ErrNotReady is returned when an operation needs a step that has not run
// for the session yet (e.g. merging before the audio was split).
var ErrNotReady = errors.New("session not ready")

// Session is one editing session: an upload, its transcript, the clip
// registry seeded from it and every artifact produced since. Nothing is
// shared between sessions.
type Session struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Dir       string

	mu             sync.RWMutex
	lastActive     time.Time
	sourcePath     string
	normalizedPath string
	transcript     []types.TranscriptSentence
	registry       *registry.Registry
	voice          *types.VoiceReference
	artifacts      map[string]types.Artifact
}

func newSession(id, name, dir string, now time.Time) *Session {
	return &Session{
		ID:         id,
		Name:       name,
		CreatedAt:  now,
		Dir:        dir,
		lastActive: now,
		artifacts:  make(map[string]types.Artifact),
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

// LastActive is when the session was last looked up.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// SetSource records the uploaded file and its normalized WAV.
func (s *Session) SetSource(sourcePath, normalizedPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourcePath = sourcePath
	s.normalizedPath = normalizedPath
}

// NormalizedAudio returns the path of the normalized recording.
func (s *Session) NormalizedAudio() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.normalizedPath == "" {
		return "", fmt.Errorf("%w: no audio uploaded", ErrNotReady)
	}
	return s.normalizedPath, nil
}

// SetTranscript installs the recognized sentences.
func (s *Session) SetTranscript(sentences []types.TranscriptSentence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append([]types.TranscriptSentence(nil), sentences...)
}

// Transcript returns a copy of the recognized sentences.
func (s *Session) Transcript() ([]types.TranscriptSentence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.transcript == nil {
		return nil, fmt.Errorf("%w: audio not transcribed", ErrNotReady)
	}
	return append([]types.TranscriptSentence(nil), s.transcript...), nil
}

// SetRegistry replaces the session's clip registry wholesale.
func (s *Session) SetRegistry(reg *registry.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = reg
}

// Registry returns the clip registry.
func (s *Session) Registry() (*registry.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.registry == nil {
		return nil, fmt.Errorf("%w: audio not split into sentences", ErrNotReady)
	}
	return s.registry, nil
}

// SetVoice records the voice used for re-synthesis.
func (s *Session) SetVoice(v types.VoiceReference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = &v
}

// Voice returns the voice used for re-synthesis.
func (s *Session) Voice() (types.VoiceReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.voice == nil {
		return types.VoiceReference{}, fmt.Errorf("%w: no reference voice", ErrNotReady)
	}
	return *s.voice, nil
}

// SetArtifact records the latest artifact of its kind.
func (s *Session) SetArtifact(a types.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.artifacts[a.Kind] = a
}

// Artifact returns the latest artifact of a kind.
func (s *Session) Artifact(kind string) (types.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[kind]
	return a, ok
}

// Info is a point-in-time summary of a session.
type Info struct {
	ID         string                    `json:"session_id"`
	Name       string                    `json:"name"`
	CreatedAt  time.Time                 `json:"created_at"`
	Source     string                    `json:"original_audio,omitempty"`
	Normalized string                    `json:"preprocessed_audio,omitempty"`
	Sentences  []types.Segment           `json:"sentence_audio,omitempty"`
	Voice      *types.VoiceReference     `json:"reference_audio,omitempty"`
	Artifacts  map[string]types.Artifact `json:"artifacts"`
}

// Info summarizes the session. Sentences come from a registry snapshot and
// are absent before the audio is split.
func (s *Session) Info() Info {
	s.mu.RLock()
	info := Info{
		ID:         s.ID,
		Name:       s.Name,
		CreatedAt:  s.CreatedAt,
		Source:     s.sourcePath,
		Normalized: s.normalizedPath,
		Artifacts:  make(map[string]types.Artifact, len(s.artifacts)),
	}
	if s.voice != nil {
		v := *s.voice
		info.Voice = &v
	}
	for k, a := range s.artifacts {
		info.Artifacts[k] = a
	}
	reg := s.registry
	s.mu.RUnlock()

	if reg != nil {
		if snap, err := reg.Snapshot(); err == nil {
			info.Sentences = snap.Entries()
		}
	}
	return info
}

func sortByCreated(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}
