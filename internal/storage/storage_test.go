package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

func TestLocalStorageLayout(t *testing.T) {
	root := t.TempDir()
	ls := NewLocalStorage(root)

	dir, err := ls.CreateWorkspace("abc")
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if dir != filepath.Join(root, "abc") {
		t.Errorf("dir = %s", dir)
	}
	for _, sub := range []string{DirUpload, DirSplit, DirCloned, DirMerge, DirSubtitle, DirJSON} {
		if fi, err := os.Stat(filepath.Join(dir, sub)); err != nil || !fi.IsDir() {
			t.Errorf("missing %s: %v", sub, err)
		}
	}

	path, err := ls.SaveJSON("abc", "report.json", map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	if filepath.Dir(path) != ls.Dir("abc", DirJSON) {
		t.Errorf("json written to %s", path)
	}

	if err := ls.RemoveWorkspace("abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("workspace still present: %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"talk.mp3", "talk.mp3"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\a.wav`, "a.wav"},
		{"what?.wav", "what_.wav"},
		{"..", "_"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, root, path, want string
	}{
		{"revoice", "/out", "/out/s1/merge/merged_audio.wav", "revoice/s1/merge/merged_audio.wav"},
		{"", "/out", "/out/s1/a.wav", "s1/a.wav"},
		{"p", "/out", "/elsewhere/b.wav", "p/b.wav"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.prefix, tt.root, tt.path); got != tt.want {
			t.Errorf("ObjectKey(%q, %q, %q) = %q; want %q", tt.prefix, tt.root, tt.path, got, tt.want)
		}
	}
}

type flakyPublisher struct {
	failures int
	calls    int
}

func (p *flakyPublisher) Publish(_ context.Context, localPath string) (string, error) {
	p.calls++
	if p.calls <= p.failures {
		return "", errors.New("unavailable")
	}
	return "remote://" + filepath.Base(localPath), nil
}

func TestRetryPublisher(t *testing.T) {
	noWait := func(int) time.Duration { return 0 }
	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantErr   bool
		wantCalls int
	}{
		{"first try", 0, 3, false, 1},
		{"recovers", 2, 3, false, 3},
		{"gives up", 5, 3, true, 3},
		{"single attempt", 1, 0, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &flakyPublisher{failures: tt.failures}
			rp := &RetryPublisher{Next: next, Attempts: tt.attempts, Backoff: noWait}
			ref, err := rp.Publish(context.Background(), "/x/a.wav")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v; wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && ref != "remote://a.wav" {
				t.Errorf("ref = %q", ref)
			}
			if next.calls != tt.wantCalls {
				t.Errorf("calls = %d; want %d", next.calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryPublisherStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rp := &RetryPublisher{Next: &flakyPublisher{failures: 10}, Attempts: 3, Backoff: func(int) time.Duration { return time.Hour }}
	if _, err := rp.Publish(ctx, "a.wav"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v; want context.Canceled", err)
	}
}

func TestMetadataDB(t *testing.T) {
	db, err := NewMetadataDB(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatalf("NewMetadataDB: %v", err)
	}
	defer db.Close()

	older := time.Now().Add(-time.Hour)
	if err := db.SaveSession("s1", "first", older); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSession("s2", "second", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSession("s1", "renamed", older); err != nil {
		t.Fatal(err)
	}

	sessions, err := db.ListSessions(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 || sessions[0].ID != "s2" || sessions[1].Name != "renamed" {
		t.Errorf("sessions = %+v", sessions)
	}

	merged := types.Artifact{Kind: types.ArtifactMergedAudio, LocalPath: "/o/s1/merge/merged_audio.wav", RemoteRef: "s3://b/k", DurationMs: 4200}
	subs := types.Artifact{Kind: types.ArtifactSubtitles, LocalPath: "/o/s1/subtitle/generated_subtitles.srt"}
	for _, a := range []types.Artifact{merged, subs} {
		if err := db.SaveArtifact("s1", a); err != nil {
			t.Fatal(err)
		}
	}
	artifacts, err := db.ListArtifacts("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("artifacts = %+v", artifacts)
	}
	if artifacts[0].RemoteRef != "s3://b/k" || artifacts[0].DurationMs != 4200 || artifacts[1].Kind != types.ArtifactSubtitles {
		t.Errorf("artifacts = %+v", artifacts)
	}

	if err := db.DeleteSession("s1"); err != nil {
		t.Fatal(err)
	}
	if artifacts, _ := db.ListArtifacts("s1"); len(artifacts) != 0 {
		t.Errorf("artifacts survived delete: %+v", artifacts)
	}
}
