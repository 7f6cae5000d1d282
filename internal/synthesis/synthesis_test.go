package synthesis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codebuildervaibhav/revoice/internal/audio"
	"github.com/codebuildervaibhav/revoice/internal/registry"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

func wavBytes(t *testing.T, ms int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := audio.Save(path, audio.Tone(audio.DefaultFormat, ms, 200)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// fakeSynth returns payload for every text except those listed in fail.
type fakeSynth struct {
	mu      sync.Mutex
	payload []byte
	fail    map[string]bool
	calls   []string
}

func (f *fakeSynth) Synthesize(_ context.Context, text string, _ types.VoiceReference) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.fail[text] {
		return nil, errors.New("provider rejected text")
	}
	return f.payload, nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string) (string, error) {
	return "", errors.New("bucket unavailable")
}

type prefixPublisher struct{}

func (prefixPublisher) Publish(_ context.Context, p string) (string, error) {
	return "remote://" + filepath.Base(p), nil
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]types.Segment{
		{SentenceID: 3, BeginMs: 2000, EndMs: 3000, Text: "three", ClipPath: "split/sentence_3.wav"},
		{SentenceID: 1, BeginMs: 0, EndMs: 1000, Text: "one", ClipPath: "split/sentence_1.wav"},
		{SentenceID: 2, BeginMs: 1000, EndMs: 2000, Text: "two", ClipPath: "split/sentence_2.wav"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

var voice = types.VoiceReference{VoiceID: "v1"}

func TestBulkClone(t *testing.T) {
	tests := []struct {
		name    string
		fail    map[string]bool
		outcome Outcome
		failed  int
	}{
		{"all succeed", nil, AllSucceeded, 0},
		{"one fails", map[string]bool{"two": true}, Partial, 1},
		{"all fail", map[string]bool{"one": true, "two": true, "three": true}, AllFailed, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			reg := newRegistry(t)
			synth := &fakeSynth{payload: wavBytes(t, 500), fail: tt.fail}
			r := NewResynthesizer(synth, Options{Publisher: prefixPublisher{}})

			var progress []int
			res := r.BulkClone(context.Background(), reg, voice, dir, func(done, total int, _ ItemResult) {
				if total != 3 {
					t.Errorf("total = %d", total)
				}
				progress = append(progress, done)
			})

			if got := res.Outcome(); got != tt.outcome {
				t.Errorf("outcome = %s; want %s", got, tt.outcome)
			}
			if res.Failed() != tt.failed || len(res.Items) != 3 {
				t.Errorf("failed = %d of %d", res.Failed(), len(res.Items))
			}
			if len(progress) != 3 || progress[2] != 3 {
				t.Errorf("progress = %v", progress)
			}
			if strings.Join(synth.calls, ",") != "one,two,three" {
				t.Errorf("calls out of id order: %v", synth.calls)
			}
			if tt.failed > 0 && !errors.Is(res.Err(), types.ErrSynthesis) {
				t.Errorf("Err() = %v; want ErrSynthesis", res.Err())
			}
			if tt.failed == 0 && res.Err() != nil {
				t.Errorf("Err() = %v", res.Err())
			}

			for _, item := range res.Items {
				seg, _ := reg.Get(item.SentenceID)
				if item.OK() {
					want := filepath.Join(dir, ClipName(item.SentenceID)+".wav")
					if seg.ClipPath != want || seg.ClipRef != "remote://"+filepath.Base(want) {
						t.Errorf("sentence %d clip = %s %s", item.SentenceID, seg.ClipPath, seg.ClipRef)
					}
					if _, err := audio.Load(seg.ClipPath); err != nil {
						t.Errorf("clip unreadable: %v", err)
					}
				} else if !strings.HasPrefix(seg.ClipPath, "split/") {
					t.Errorf("failed sentence %d clip changed to %s", item.SentenceID, seg.ClipPath)
				}
			}
		})
	}
}

func TestBulkCloneTranscodesNonWAV(t *testing.T) {
	dir := t.TempDir()
	reg := newRegistry(t)
	wav := wavBytes(t, 300)
	var transcoded []string
	r := NewResynthesizer(&fakeSynth{payload: []byte("ID3\x04fake-mp3")}, Options{
		Transcode: func(in, out string) error {
			transcoded = append(transcoded, filepath.Base(in))
			return os.WriteFile(out, wav, 0644)
		},
	})

	res := r.BulkClone(context.Background(), reg, voice, dir, nil)
	if res.Outcome() != AllSucceeded {
		t.Fatalf("outcome = %s: %v", res.Outcome(), res.Err())
	}
	if len(transcoded) != 3 || !strings.HasPrefix(transcoded[0], ".cloned_sentence_1-") || filepath.Ext(transcoded[0]) != ".mp3" {
		t.Errorf("transcoded = %v", transcoded)
	}
	assertOnlyClips(t, dir, 3)
	seg, _ := reg.Get(1)
	if seg.ClipRef != "" {
		t.Errorf("nop publisher produced ref %q", seg.ClipRef)
	}
}

func TestPublishFailureKeepsLocalClip(t *testing.T) {
	reg := newRegistry(t)
	r := NewResynthesizer(&fakeSynth{payload: wavBytes(t, 100)}, Options{Publisher: failingPublisher{}})

	res := r.BulkClone(context.Background(), reg, voice, t.TempDir(), nil)
	if res.Outcome() != AllSucceeded {
		t.Fatalf("outcome = %s", res.Outcome())
	}
	seg, _ := reg.Get(2)
	if seg.ClipRef != "" || !strings.HasSuffix(seg.ClipPath, "cloned_sentence_2.wav") {
		t.Errorf("seg = %+v", seg)
	}
}

func TestRegenerate(t *testing.T) {
	dir := t.TempDir()
	reg := newRegistry(t)
	synth := &fakeSynth{payload: wavBytes(t, 400), fail: map[string]bool{"bad": true}}
	r := NewResynthesizer(synth, Options{})

	seg, err := r.Regenerate(context.Background(), reg, 2, "two, revised", voice, dir)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if seg.Text != "two, revised" || seg.ClipPath != filepath.Join(dir, "cloned_sentence_2.wav") {
		t.Errorf("seg = %+v", seg)
	}
	if seg.BeginMs != 1000 || seg.EndMs != 2000 {
		t.Errorf("timestamps changed: %+v", seg)
	}
	if other, _ := reg.Get(1); other.Text != "one" || other.ClipPath != "split/sentence_1.wav" {
		t.Errorf("unrelated entry disturbed: %+v", other)
	}
	if h := reg.History(); len(h) != 1 || h[0].SentenceID != 2 {
		t.Errorf("history = %+v", h)
	}

	before, _ := reg.Get(3)
	if _, err := r.Regenerate(context.Background(), reg, 3, "bad", voice, dir); !errors.Is(err, types.ErrSynthesis) {
		t.Errorf("err = %v; want ErrSynthesis", err)
	}
	if after, _ := reg.Get(3); after != before {
		t.Errorf("failed regenerate changed entry: %+v", after)
	}

	if _, err := r.Regenerate(context.Background(), reg, 42, "x", voice, dir); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestRetryPolicy(t *testing.T) {
	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		data, err := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}.Do(context.Background(), func(context.Context) ([]byte, error) {
			calls++
			if calls < 2 {
				return nil, errors.New("transient")
			}
			return []byte("ok"), nil
		})
		if err != nil || string(data) != "ok" || calls != 2 {
			t.Errorf("data=%q err=%v calls=%d", data, err, calls)
		}
	})

	t.Run("applies timeout", func(t *testing.T) {
		_, err := RetryPolicy{Timeout: 10 * time.Millisecond}.Do(context.Background(), func(ctx context.Context) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v; want deadline exceeded", err)
		}
	})

	t.Run("returns last error", func(t *testing.T) {
		calls := 0
		_, err := RetryPolicy{Attempts: 2, Backoff: time.Millisecond}.Do(context.Background(), func(context.Context) ([]byte, error) {
			calls++
			return nil, errors.New("down")
		})
		if err == nil || !strings.Contains(err.Error(), "down") || calls != 2 {
			t.Errorf("err=%v calls=%d", err, calls)
		}
	})
}

func TestElevenLabs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == "/text-to-speech/voice-9":
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"text":"hello"`) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Write([]byte("ID3audio"))
		case r.URL.Path == "/voices/add":
			if err := r.ParseMultipartForm(1 << 20); err != nil || r.FormValue("name") != "narrator" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"voice_id":"voice-9"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewElevenLabsSynthesizer("secret", "")
	c.BaseURL = srv.URL

	sample := filepath.Join(t.TempDir(), "ref.wav")
	os.WriteFile(sample, []byte("RIFF"), 0644)
	id, err := c.CloneVoice(context.Background(), "narrator", sample)
	if err != nil || id != "voice-9" {
		t.Fatalf("CloneVoice = %q, %v", id, err)
	}

	data, err := c.Synthesize(context.Background(), "hello", types.VoiceReference{VoiceID: id})
	if err != nil || string(data) != "ID3audio" {
		t.Errorf("Synthesize = %q, %v", data, err)
	}

	c.APIKey = "wrong"
	if _, err := c.Synthesize(context.Background(), "hello", types.VoiceReference{VoiceID: id}); err == nil {
		t.Errorf("expected error on bad status")
	}
	if _, err := c.Synthesize(context.Background(), "hello", types.VoiceReference{}); err == nil {
		t.Errorf("expected error without voice id")
	}
}

// assertOnlyClips checks that dir holds exactly n installed clips and no
// staging files.
func assertOnlyClips(t *testing.T, dir string, n int) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) != n {
		t.Errorf("clip dir = %v; want %d clips", names, n)
	}
	for _, name := range names {
		if strings.HasPrefix(name, ".") || !strings.HasPrefix(name, "cloned_sentence_") || filepath.Ext(name) != ".wav" {
			t.Errorf("unexpected file %s", name)
		}
	}
}

// gatedSynth returns a clip whose length depends on the text. Text listed
// in gate blocks until the gate is closed, after signalling started.
type gatedSynth struct {
	wav     map[string][]byte
	gate    map[string]chan struct{}
	started chan string
}

func (g *gatedSynth) Synthesize(ctx context.Context, text string, _ types.VoiceReference) ([]byte, error) {
	if ch, ok := g.gate[text]; ok {
		g.started <- text
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	data, ok := g.wav[text]
	if !ok {
		return nil, errors.New("unexpected text " + text)
	}
	return data, nil
}

func TestBulkCloneYieldsToConcurrentRegenerate(t *testing.T) {
	dir := t.TempDir()
	reg := newRegistry(t)
	release := make(chan struct{})
	synth := &gatedSynth{
		wav: map[string][]byte{
			"one":        wavBytes(t, 100),
			"two":        wavBytes(t, 200),
			"three":      wavBytes(t, 300),
			"edited one": wavBytes(t, 700),
		},
		gate:    map[string]chan struct{}{"one": release},
		started: make(chan string, 1),
	}
	r := NewResynthesizer(synth, Options{})

	done := make(chan *BatchResult)
	go func() {
		done <- r.BulkClone(context.Background(), reg, voice, dir, nil)
	}()

	select {
	case <-synth.started:
	case <-time.After(5 * time.Second):
		t.Fatal("bulk clone never reached sentence 1")
	}
	if _, err := r.Regenerate(context.Background(), reg, 1, "edited one", voice, dir); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	close(release)
	res := <-done

	if res.Outcome() != Partial {
		t.Errorf("outcome = %s; want %s", res.Outcome(), Partial)
	}
	first := res.Items[0]
	if first.SentenceID != 1 || !errors.Is(first.Err, registry.ErrSuperseded) || !errors.Is(first.Err, types.ErrSynthesis) {
		t.Errorf("sentence 1 item = %+v", first)
	}

	seg, _ := reg.Get(1)
	clip, err := audio.Load(seg.ClipPath)
	if err != nil {
		t.Fatal(err)
	}
	if seg.Text != "edited one" || clip.DurationMs() != 700 {
		t.Errorf("sentence 1 = %q with %dms clip; want the edited text's 700ms clip", seg.Text, clip.DurationMs())
	}
	assertOnlyClips(t, dir, 3)
}

func TestConcurrentRegenerateKeepsTextAndClipTogether(t *testing.T) {
	dir := t.TempDir()
	reg := newRegistry(t)
	lengths := map[string]int{"short": 200, "long": 900}
	wav := map[string][]byte{}
	for text, ms := range lengths {
		wav[text] = wavBytes(t, ms)
	}
	r := NewResynthesizer(&gatedSynth{wav: wav}, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		text := "short"
		if i%2 == 1 {
			text = "long"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Regenerate(context.Background(), reg, 2, text, voice, dir); err != nil {
				t.Errorf("Regenerate(%s): %v", text, err)
			}
		}()
	}
	wg.Wait()

	seg, _ := reg.Get(2)
	clip, err := audio.Load(seg.ClipPath)
	if err != nil {
		t.Fatalf("installed clip unreadable: %v", err)
	}
	if clip.DurationMs() != lengths[seg.Text] {
		t.Errorf("text %q paired with a %dms clip", seg.Text, clip.DurationMs())
	}
	assertOnlyClips(t, dir, 1)
}
