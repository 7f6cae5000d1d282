package session

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/codebuildervaibhav/revoice/internal/registry"
	"github.com/codebuildervaibhav/revoice/internal/storage"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(storage.NewLocalStorage(t.TempDir()))

	a, err := m.Create("first")
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Create("second")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Fatal("session ids collide")
	}
	if fi, err := os.Stat(a.Dir); err != nil || !fi.IsDir() {
		t.Fatalf("workspace missing: %v", err)
	}

	got, err := m.Get(a.ID)
	if err != nil || got != a {
		t.Errorf("Get = %v, %v", got, err)
	}
	if _, err := m.Get("nope"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
	if n := len(m.List()); n != 2 {
		t.Errorf("List = %d sessions", n)
	}

	if err := m.Remove(a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(a.Dir); !os.IsNotExist(err) {
		t.Errorf("workspace survived removal")
	}
	if err := m.Remove(a.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("second remove err = %v", err)
	}
}

func TestExpired(t *testing.T) {
	m := NewManager(storage.NewLocalStorage(t.TempDir()))
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	old, _ := m.Create("old")
	now = now.Add(3 * time.Hour)
	fresh, _ := m.Create("fresh")

	expired := m.Expired(2 * time.Hour)
	if len(expired) != 1 || expired[0] != old.ID {
		t.Errorf("expired = %v; want [%s]", expired, old.ID)
	}

	// A lookup keeps a session alive.
	m.Get(old.ID)
	if expired := m.Expired(2 * time.Hour); len(expired) != 0 {
		t.Errorf("expired after touch = %v", expired)
	}
	_ = fresh
}

func TestSessionState(t *testing.T) {
	m := NewManager(storage.NewLocalStorage(t.TempDir()))
	s, _ := m.Create("talk")

	if _, err := s.Registry(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Registry err = %v", err)
	}
	if _, err := s.Voice(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Voice err = %v", err)
	}
	if _, err := s.NormalizedAudio(); !errors.Is(err, ErrNotReady) {
		t.Errorf("NormalizedAudio err = %v", err)
	}

	reg, _ := registry.New([]types.Segment{{SentenceID: 1, BeginMs: 0, EndMs: 500, Text: "hi"}})
	s.SetRegistry(reg)
	s.SetSource("in.mp3", "in.wav")
	s.SetVoice(types.VoiceReference{VoiceID: "v"})
	s.SetArtifact(types.Artifact{Kind: types.ArtifactMergedAudio, LocalPath: "m.wav"})

	info := s.Info()
	if len(info.Sentences) != 1 || info.Normalized != "in.wav" || info.Voice.VoiceID != "v" {
		t.Errorf("info = %+v", info)
	}
	if a, ok := s.Artifact(types.ArtifactMergedAudio); !ok || a.CreatedAt.IsZero() {
		t.Errorf("artifact = %+v, %v", a, ok)
	}
}
