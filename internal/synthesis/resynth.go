package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/codebuildervaibhav/revoice/internal/audio"
	"github.com/codebuildervaibhav/revoice/internal/registry"
	"github.com/codebuildervaibhav/revoice/internal/storage"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

// ProgressFunc is called after each sentence of a bulk clone with the
// number of sentences handled so far and the total.
type ProgressFunc func(done, total int, item ItemResult)

// Options configures a Resynthesizer.
type Options struct {
	Policy    RetryPolicy
	Publisher storage.Publisher
	// Transcode converts a non-WAV payload to WAV. Nil uses ffmpeg.
	Transcode func(in, out string) error
}

// Resynthesizer drives a Synthesizer over registry entries and installs the
// resulting clips.
type Resynthesizer struct {
	synth     Synthesizer
	policy    RetryPolicy
	publisher storage.Publisher
	transcode func(in, out string) error
}

func NewResynthesizer(synth Synthesizer, opts Options) *Resynthesizer {
	r := &Resynthesizer{
		synth:     synth,
		policy:    opts.Policy,
		publisher: opts.Publisher,
		transcode: opts.Transcode,
	}
	if r.publisher == nil {
		r.publisher = storage.NopPublisher{}
	}
	if r.transcode == nil {
		r.transcode = func(in, out string) error {
			return audio.Transcode(in, out, audio.DefaultFormat)
		}
	}
	return r
}

// ClipName is the file name of the synthesized clip of a sentence, without
// extension.
func ClipName(sentenceID int) string {
	return fmt.Sprintf("cloned_sentence_%d", sentenceID)
}

// BulkClone re-synthesizes every entry in sentence id order, writing clips
// to dir. A failure on one sentence never stops the others; each outcome is
// recorded in the returned result.
func (r *Resynthesizer) BulkClone(ctx context.Context, reg *registry.Registry, voice types.VoiceReference, dir string, progress ProgressFunc) *BatchResult {
	ids := reg.IDs()
	result := &BatchResult{Items: make([]ItemResult, 0, len(ids))}

	for i, id := range ids {
		item := r.cloneEntry(ctx, reg, id, voice, dir)
		result.Items = append(result.Items, item)
		if item.Err != nil {
			log.Printf("WARNING: Clone: sentence %d failed: %v", id, item.Err)
		}
		if progress != nil {
			progress(i+1, len(ids), item)
		}
	}

	log.Printf("Clone finished: %d sentences, %d failed (%s)", len(ids), result.Failed(), result.Outcome())
	return result
}

func (r *Resynthesizer) cloneEntry(ctx context.Context, reg *registry.Registry, id int, voice types.VoiceReference, dir string) ItemResult {
	item := ItemResult{SentenceID: id}
	if err := ctx.Err(); err != nil {
		item.Err = &types.SynthesisError{SentenceID: id, Err: err}
		return item
	}
	seg, err := reg.Get(id)
	if err != nil {
		item.Err = err
		return item
	}
	staged, err := r.produce(ctx, id, seg.Text, voice, dir)
	if err != nil {
		item.Err = err
		return item
	}

	// A regenerate that changed the text while this clip was being made
	// wins; the stale clip is dropped.
	path := clipPath(dir, id)
	err = reg.UpsertClipIf(id, seg.Text, path, "", func() error {
		return os.Rename(staged, path)
	})
	if err != nil {
		os.Remove(staged)
		item.Err = &types.SynthesisError{SentenceID: id, Err: err}
		return item
	}
	item.ClipPath = path
	item.ClipRef = r.publish(ctx, reg, id, seg.Text, path)
	return item
}

// Regenerate re-synthesizes one sentence with new text. The registry entry
// gets the text and the clip together, and only once synthesis succeeded;
// on failure the entry is left as it was.
func (r *Resynthesizer) Regenerate(ctx context.Context, reg *registry.Registry, sentenceID int, text string, voice types.VoiceReference, dir string) (types.Segment, error) {
	if _, err := reg.Get(sentenceID); err != nil {
		return types.Segment{}, err
	}
	staged, err := r.produce(ctx, sentenceID, text, voice, dir)
	if err != nil {
		return types.Segment{}, err
	}
	path := clipPath(dir, sentenceID)
	err = reg.ReplaceWith(sentenceID, text, path, "", func() error {
		return os.Rename(staged, path)
	})
	if err != nil {
		os.Remove(staged)
		return types.Segment{}, &types.SynthesisError{SentenceID: sentenceID, Err: err}
	}
	r.publish(ctx, reg, sentenceID, text, path)
	log.Printf("Sentence %d regenerated: %s", sentenceID, path)
	return reg.Get(sentenceID)
}

func clipPath(dir string, id int) string {
	return filepath.Join(dir, ClipName(id)+".wav")
}

// produce synthesizes one clip into a uniquely named WAV file in dir and
// returns its path. Concurrent calls for the same sentence never share a
// file.
func (r *Resynthesizer) produce(ctx context.Context, id int, text string, voice types.VoiceReference, dir string) (string, error) {
	data, err := r.policy.Do(ctx, func(ctx context.Context) ([]byte, error) {
		return r.synth.Synthesize(ctx, text, voice)
	})
	if err != nil {
		return "", &types.SynthesisError{SentenceID: id, Err: err}
	}
	if len(data) == 0 {
		return "", &types.SynthesisError{SentenceID: id, Err: errors.New("empty audio")}
	}

	staged, err := r.stage(id, data, dir)
	if err != nil {
		return "", &types.SynthesisError{SentenceID: id, Err: err}
	}
	return staged, nil
}

// publish uploads an installed clip and records the ref while the entry
// still holds the text the clip was made for. Publishing failures are
// logged; the clip stays usable locally.
func (r *Resynthesizer) publish(ctx context.Context, reg *registry.Registry, id int, text, path string) string {
	ref, err := r.publisher.Publish(ctx, path)
	if err != nil {
		log.Printf("WARNING: Clone: publishing sentence %d failed, keeping local clip only: %v", id, err)
		return ""
	}
	if ref == "" {
		return ""
	}
	if err := reg.UpsertClipIf(id, text, path, ref, nil); err != nil {
		log.Printf("Clone: sentence %d changed before its upload finished: %v", id, err)
		return ""
	}
	return ref
}

// stage writes the payload to a temporary WAV next to the final clip.
// Payloads that are not WAV are written under their sniffed extension first
// and transcoded.
func (r *Resynthesizer) stage(id int, data []byte, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create clip directory: %v", err)
	}
	prefix := "." + ClipName(id) + "-*"

	if audio.IsWAV(data) {
		return writeTemp(dir, prefix+".wav", data)
	}

	raw, err := writeTemp(dir, prefix+sniffExt(data), data)
	if err != nil {
		return "", err
	}
	defer os.Remove(raw)
	wavPath := strings.TrimSuffix(raw, filepath.Ext(raw)) + ".wav"
	if err := r.transcode(raw, wavPath); err != nil {
		os.Remove(wavPath)
		return "", fmt.Errorf("transcoding %s: %w", raw, err)
	}
	return wavPath, nil
}

func writeTemp(dir, pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create clip file: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write clip: %v", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write clip: %v", err)
	}
	return f.Name(), nil
}

// sniffExt guesses a container extension from magic bytes.
func sniffExt(data []byte) string {
	switch {
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return ".mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ".mp3"
	case len(data) >= 4 && string(data[:4]) == "OggS":
		return ".ogg"
	case len(data) >= 4 && string(data[:4]) == "fLaC":
		return ".flac"
	default:
		return ".bin"
	}
}
