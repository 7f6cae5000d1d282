package types

import "time"

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusPartial    = "PARTIAL"
	StatusFailed     = "FAILED"
)

// Job kind constants
const (
	JobClone = "clone"
	JobMerge = "merge"
)

// Artifact kind constants
const (
	ArtifactOriginal      = "original_audio"
	ArtifactPreprocessed  = "preprocessed_audio"
	ArtifactTranscription = "transcription"
	ArtifactSentenceClip  = "sentence_clip"
	ArtifactClonedClip    = "cloned_clip"
	ArtifactMergedAudio   = "merged_audio"
	ArtifactSubtitles     = "subtitles"
	ArtifactReference     = "reference_audio"
)

// TranscriptSentence is one recognized sentence as delivered by the
// speech-recognition collaborator. Times are in milliseconds.
type TranscriptSentence struct {
	SentenceID int    `json:"sentence_id"`
	BeginMs    int    `json:"begin_time"`
	EndMs      int    `json:"end_time"`
	Text       string `json:"text"`
}

// DurationMs returns the slot length of the sentence.
func (s TranscriptSentence) DurationMs() int {
	return s.EndMs - s.BeginMs
}

// Segment is one sentence entry of the clip registry. BeginMs and EndMs are
// fixed once the timeline exists; Text and the clip fields are editable.
type Segment struct {
	SentenceID int    `json:"sentence_id"`
	BeginMs    int    `json:"begin_time"`
	EndMs      int    `json:"end_time"`
	Text       string `json:"text"`
	ClipPath   string `json:"local_url"`
	ClipRef    string `json:"oss_url,omitempty"`
}

// TargetMs is the slot duration the merge engine must fill.
func (s Segment) TargetMs() int {
	return s.EndMs - s.BeginMs
}

// VoiceReference identifies the voice used for re-synthesis. VoiceID is the
// provider-side voice (a cloned voice or a preset); SamplePath/SampleRef and
// SampleText describe the enrollment recording it was cloned from.
type VoiceReference struct {
	VoiceID    string `json:"voice_id"`
	SamplePath string `json:"local_url,omitempty"`
	SampleRef  string `json:"oss_url,omitempty"`
	SampleText string `json:"text,omitempty"`
}

// Artifact is a locally written file and, once published, its remote ref.
type Artifact struct {
	Kind       string    `json:"kind"`
	LocalPath  string    `json:"local_url"`
	RemoteRef  string    `json:"oss_url,omitempty"`
	DurationMs int       `json:"duration_ms,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
