package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/codebuildervaibhav/revoice/internal/audio"
	"github.com/codebuildervaibhav/revoice/internal/registry"
	"github.com/codebuildervaibhav/revoice/internal/segmenter"
	"github.com/codebuildervaibhav/revoice/internal/session"
	"github.com/codebuildervaibhav/revoice/internal/storage"
	"github.com/codebuildervaibhav/revoice/internal/subtitle"
	"github.com/codebuildervaibhav/revoice/internal/synthesis"
	"github.com/codebuildervaibhav/revoice/internal/timeline"
	"github.com/codebuildervaibhav/revoice/internal/transcription"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

// Artifact file names inside a session workspace.
const (
	NormalizedName = "preprocessed_audio.wav"
	TranscriptName = "transcription.json"
	SentencesName  = "sentence_audio.json"
	ClonedName     = "cloned_audio.json"
	MergedName     = "merged_audio.wav"
	MergeReport    = "merge_report.json"
	SubtitlesName  = "generated_subtitles.srt"
)

// Deps are the collaborators of a Service. Transcriber, Synthesizer,
// Cloner, Publisher and DB are optional.
type Deps struct {
	Sessions    *session.Manager
	Storage     *storage.LocalStorage
	Publisher   storage.Publisher
	DB          *storage.MetadataDB
	Transcriber transcription.Transcriber
	Resynth     *synthesis.Resynthesizer
	Cloner      synthesis.VoiceCloner
	Merger      *timeline.Merger
	// Normalize converts an upload to the working WAV format. Nil uses ffmpeg.
	Normalize func(in, out string) error
}

// Service runs the voice re-synthesis workflow, one session at a time per
// call: ingest, transcribe, split, edit, clone, merge and caption.
type Service struct {
	sessions    *session.Manager
	storage     *storage.LocalStorage
	publisher   storage.Publisher
	db          *storage.MetadataDB
	transcriber transcription.Transcriber
	resynth     *synthesis.Resynthesizer
	cloner      synthesis.VoiceCloner
	merger      *timeline.Merger
	normalize   func(in, out string) error
}

func NewService(d Deps) *Service {
	s := &Service{
		sessions:    d.Sessions,
		storage:     d.Storage,
		publisher:   d.Publisher,
		db:          d.DB,
		transcriber: d.Transcriber,
		resynth:     d.Resynth,
		cloner:      d.Cloner,
		merger:      d.Merger,
		normalize:   d.Normalize,
	}
	if s.publisher == nil {
		s.publisher = storage.NopPublisher{}
	}
	if s.merger == nil {
		s.merger = timeline.NewMerger(timeline.Options{})
	}
	if s.normalize == nil {
		s.normalize = audio.Normalize
	}
	return s
}

// Sessions exposes the session manager.
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// Ingest starts a session from an uploaded file: the file is moved into the
// new workspace and normalized to 16kHz mono WAV.
func (s *Service) Ingest(ctx context.Context, name, uploadPath string) (*session.Session, error) {
	sess, err := s.sessions.Create(name)
	if err != nil {
		return nil, err
	}

	sourcePath := s.storage.UploadPath(sess.ID, filepath.Base(uploadPath))
	if err := moveFile(uploadPath, sourcePath); err != nil {
		s.sessions.Remove(sess.ID)
		return nil, fmt.Errorf("failed to store upload: %v", err)
	}

	normalizedPath := filepath.Join(s.storage.Dir(sess.ID, storage.DirUpload), NormalizedName)
	if err := s.normalize(sourcePath, normalizedPath); err != nil {
		s.sessions.Remove(sess.ID)
		return nil, err
	}
	sess.SetSource(sourcePath, normalizedPath)

	durationMs := 0
	if clip, err := audio.Load(normalizedPath); err == nil {
		durationMs = clip.DurationMs()
	}

	if s.db != nil {
		if err := s.db.SaveSession(sess.ID, sess.Name, sess.CreatedAt); err != nil {
			log.Printf("Session %s: database save failed: %v", sess.ID, err)
		}
	}
	originalMs, err := audio.ProbeDurationMs(sourcePath)
	if err != nil {
		originalMs = durationMs
	}
	s.record(ctx, sess, types.Artifact{Kind: types.ArtifactOriginal, LocalPath: sourcePath, DurationMs: originalMs})
	s.record(ctx, sess, types.Artifact{Kind: types.ArtifactPreprocessed, LocalPath: normalizedPath, DurationMs: durationMs})

	log.Printf("Session %s: ingested %s (%dms)", sess.ID, filepath.Base(uploadPath), durationMs)
	return sess, nil
}

// Transcribe runs the speech recognizer over the normalized audio.
func (s *Service) Transcribe(ctx context.Context, sessionID string) ([]types.TranscriptSentence, error) {
	if s.transcriber == nil {
		return nil, errors.New("no transcriber configured")
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	audioPath, err := sess.NormalizedAudio()
	if err != nil {
		return nil, err
	}
	sentences, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	if err := s.SetTranscript(ctx, sessionID, sentences); err != nil {
		return nil, err
	}
	return sentences, nil
}

// SetTranscript installs a transcript produced elsewhere and persists it in
// the workspace. Sentences out of chronological order or overlapping fail
// with a *types.TimelineOrderError and leave the session unchanged.
func (s *Service) SetTranscript(ctx context.Context, sessionID string, sentences []types.TranscriptSentence) error {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if err := checkTimeline(sentences); err != nil {
		return err
	}
	path := filepath.Join(s.storage.Dir(sess.ID, storage.DirJSON), TranscriptName)
	if err := transcription.SaveTranscript(path, sentences); err != nil {
		return err
	}
	sess.SetTranscript(sentences)
	s.record(ctx, sess, types.Artifact{Kind: types.ArtifactTranscription, LocalPath: path})
	log.Printf("Session %s: transcript has %d sentences", sess.ID, len(sentences))
	return nil
}

// Split cuts the normalized audio into one clip per transcript sentence and
// seeds a fresh registry, replacing any earlier one.
func (s *Service) Split(ctx context.Context, sessionID string) ([]types.Segment, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	audioPath, err := sess.NormalizedAudio()
	if err != nil {
		return nil, err
	}
	transcript, err := sess.Transcript()
	if err != nil {
		return nil, err
	}

	seg := segmenter.NewSegmenter(s.storage.Dir(sess.ID, storage.DirSplit))
	segments, err := seg.Split(audioPath, transcript)
	if err != nil {
		return nil, err
	}
	for i := range segments {
		if segments[i].ClipPath == "" {
			continue
		}
		segments[i].ClipRef = s.publish(ctx, segments[i].ClipPath)
	}

	reg, err := registry.New(segments)
	if err != nil {
		return nil, err
	}
	sess.SetRegistry(reg)
	if _, err := s.storage.SaveJSON(sess.ID, SentencesName, segments); err != nil {
		log.Printf("Session %s: %v", sess.ID, err)
	}
	log.Printf("Session %s: split into %d sentences", sess.ID, len(segments))
	return segments, nil
}

// TextEdit is one requested text change.
type TextEdit struct {
	SentenceID int    `json:"sentence_id"`
	Text       string `json:"text"`
}

// UpdateTexts applies text edits. Unknown sentence ids fail their own item
// only.
func (s *Service) UpdateTexts(sessionID string, edits []TextEdit) (*synthesis.BatchResult, error) {
	reg, err := s.registry(sessionID)
	if err != nil {
		return nil, err
	}
	result := &synthesis.BatchResult{}
	for _, e := range edits {
		item := synthesis.ItemResult{SentenceID: e.SentenceID}
		item.Err = reg.UpsertText(e.SentenceID, e.Text)
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// VoiceInput describes the voice to clone with. Either VoiceID names an
// existing provider voice, or SamplePath is enrolled with the cloner.
type VoiceInput struct {
	VoiceID    string
	SamplePath string
	SampleText string
}

// SetVoice records the reference voice of a session, enrolling the sample
// first when no voice id was given.
func (s *Service) SetVoice(ctx context.Context, sessionID string, in VoiceInput) (types.VoiceReference, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return types.VoiceReference{}, err
	}
	ref := types.VoiceReference{
		VoiceID:    in.VoiceID,
		SamplePath: in.SamplePath,
		SampleText: in.SampleText,
	}
	if in.SamplePath != "" {
		ref.SampleRef = s.publish(ctx, in.SamplePath)
		sess.SetArtifact(types.Artifact{Kind: types.ArtifactReference, LocalPath: in.SamplePath, RemoteRef: ref.SampleRef})
	}
	if ref.VoiceID == "" {
		if in.SamplePath == "" || s.cloner == nil {
			return types.VoiceReference{}, fmt.Errorf("%w: a voice id or a reference sample with a voice-cloning provider is required", session.ErrNotReady)
		}
		id, err := s.cloner.CloneVoice(ctx, "revoice-"+sess.ID, in.SamplePath)
		if err != nil {
			return types.VoiceReference{}, &types.SynthesisError{Err: fmt.Errorf("voice enrollment: %w", err)}
		}
		ref.VoiceID = id
	}
	sess.SetVoice(ref)
	log.Printf("Session %s: reference voice set to %s", sess.ID, ref.VoiceID)
	return ref, nil
}

// CloneAll re-synthesizes every sentence in the session's voice.
func (s *Service) CloneAll(ctx context.Context, sessionID string, progress synthesis.ProgressFunc) (*synthesis.BatchResult, error) {
	sess, reg, voice, err := s.cloneInputs(sessionID)
	if err != nil {
		return nil, err
	}
	res := s.resynth.BulkClone(ctx, reg, voice, s.storage.Dir(sess.ID, storage.DirCloned), progress)
	for _, item := range res.Items {
		if item.OK() {
			sess.SetArtifact(types.Artifact{Kind: fmt.Sprintf("%s_%d", types.ArtifactClonedClip, item.SentenceID), LocalPath: item.ClipPath, RemoteRef: item.ClipRef})
		}
	}
	if snap, err := reg.Snapshot(); err == nil {
		s.storage.SaveJSON(sess.ID, ClonedName, snap.Entries())
	}
	return res, nil
}

// Regenerate re-synthesizes one sentence with new text.
func (s *Service) Regenerate(ctx context.Context, sessionID string, sentenceID int, text string) (types.Segment, error) {
	sess, reg, voice, err := s.cloneInputs(sessionID)
	if err != nil {
		return types.Segment{}, err
	}
	return s.resynth.Regenerate(ctx, reg, sentenceID, text, voice, s.storage.Dir(sess.ID, storage.DirCloned))
}

func (s *Service) cloneInputs(sessionID string) (*session.Session, *registry.Registry, types.VoiceReference, error) {
	if s.resynth == nil {
		return nil, nil, types.VoiceReference{}, errors.New("no synthesizer configured")
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, nil, types.VoiceReference{}, err
	}
	reg, err := sess.Registry()
	if err != nil {
		return nil, nil, types.VoiceReference{}, err
	}
	voice, err := sess.Voice()
	if err != nil {
		return nil, nil, types.VoiceReference{}, err
	}
	return sess, reg, voice, nil
}

// MergeResult is the outcome of a merge.
type MergeResult struct {
	Artifact types.Artifact   `json:"merged_audio"`
	Report   *timeline.Report `json:"report"`
}

// Merge rebuilds the session's track from a registry snapshot and exports
// it as merged_audio.wav.
func (s *Service) Merge(ctx context.Context, sessionID string) (*MergeResult, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(sess)
	if err != nil {
		return nil, err
	}

	out := filepath.Join(s.storage.Dir(sess.ID, storage.DirMerge), MergedName)
	track, report, err := s.merger.MergeTo(snap, out)
	if err != nil {
		return nil, err
	}
	if _, err := s.storage.SaveJSON(sess.ID, MergeReport, report); err != nil {
		log.Printf("Session %s: %v", sess.ID, err)
	}

	a := s.record(ctx, sess, types.Artifact{Kind: types.ArtifactMergedAudio, LocalPath: out, DurationMs: track.DurationMs})
	return &MergeResult{Artifact: a, Report: report}, nil
}

// Subtitles writes the caption track for the current registry snapshot.
func (s *Service) Subtitles(ctx context.Context, sessionID string) (types.Artifact, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return types.Artifact{}, err
	}
	snap, err := s.snapshot(sess)
	if err != nil {
		return types.Artifact{}, err
	}

	track := subtitle.Emit(snap)
	out := filepath.Join(s.storage.Dir(sess.ID, storage.DirSubtitle), SubtitlesName)
	if err := subtitle.Write(out, track); err != nil {
		return types.Artifact{}, err
	}
	log.Printf("Session %s: %d subtitle cues written to %s", sess.ID, len(track.Cues), out)
	return s.record(ctx, sess, types.Artifact{Kind: types.ArtifactSubtitles, LocalPath: out}), nil
}

// Info summarizes a session.
func (s *Service) Info(sessionID string) (session.Info, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return session.Info{}, err
	}
	return sess.Info(), nil
}

// Remove deletes a session, its workspace and its metadata rows.
func (s *Service) Remove(sessionID string) error {
	if err := s.sessions.Remove(sessionID); err != nil {
		return err
	}
	if s.db != nil {
		if err := s.db.DeleteSession(sessionID); err != nil {
			log.Printf("Session %s: database delete failed: %v", sessionID, err)
		}
	}
	return nil
}

// History returns the text edits applied to a session's sentences.
func (s *Service) History(sessionID string) ([]registry.Edit, error) {
	reg, err := s.registry(sessionID)
	if err != nil {
		return nil, err
	}
	return reg.History(), nil
}

// Artifacts lists a session's recorded artifacts, oldest first. Without a
// metadata database the session's latest artifact of each kind is returned.
func (s *Service) Artifacts(sessionID string) ([]types.Artifact, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if s.db != nil {
		return s.db.ListArtifacts(sess.ID)
	}
	info := sess.Info()
	out := make([]types.Artifact, 0, len(info.Artifacts))
	for _, a := range info.Artifacts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Expired lists sessions idle for longer than maxAge.
func (s *Service) Expired(maxAge time.Duration) []string {
	return s.sessions.Expired(maxAge)
}

func (s *Service) registry(sessionID string) (*registry.Registry, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Registry()
}

// checkTimeline applies the snapshot rules to a transcript before any clip
// exists, so a bad timeline is refused where it enters.
func checkTimeline(sentences []types.TranscriptSentence) error {
	segments := make([]types.Segment, len(sentences))
	for i, ts := range sentences {
		segments[i] = types.Segment{SentenceID: ts.SentenceID, BeginMs: ts.BeginMs, EndMs: ts.EndMs, Text: ts.Text}
	}
	_, err := registry.NewSnapshot(segments)
	return err
}

func (s *Service) snapshot(sess *session.Session) (*registry.Snapshot, error) {
	reg, err := sess.Registry()
	if err != nil {
		return nil, err
	}
	return reg.Snapshot()
}

// record publishes an artifact and stores it on the session and in the
// metadata database.
func (s *Service) record(ctx context.Context, sess *session.Session, a types.Artifact) types.Artifact {
	a.RemoteRef = s.publish(ctx, a.LocalPath)
	a.CreatedAt = time.Now()
	sess.SetArtifact(a)
	if s.db != nil {
		if err := s.db.SaveArtifact(sess.ID, a); err != nil {
			log.Printf("Session %s: database save failed: %v", sess.ID, err)
		}
	}
	return a
}

// publish hands a local file to the publisher. Remote storage is never
// required for an operation to succeed.
func (s *Service) publish(ctx context.Context, path string) string {
	ref, err := s.publisher.Publish(ctx, path)
	if err != nil {
		log.Printf("WARNING: publishing %s failed, keeping local copy only: %v", path, err)
		return ""
	}
	return ref
}

func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
