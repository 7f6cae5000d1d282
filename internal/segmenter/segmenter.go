package segmenter

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/codebuildervaibhav/revoice/internal/audio"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

// Segmenter cuts a source recording into one clip per transcript sentence.
type Segmenter struct {
	outputDir string
}

// NewSegmenter creates a segmenter writing clips into outputDir
func NewSegmenter(outputDir string) *Segmenter {
	return &Segmenter{outputDir: outputDir}
}

// ClipName is the file name of the raw clip for a sentence. It depends only
// on the sentence id, so re-running a split overwrites the same files.
func ClipName(sentenceID int) string {
	return fmt.Sprintf("sentence_%d.wav", sentenceID)
}

// Split slices sourcePath at each sentence's [begin, end) window, taken
// verbatim from the transcript, and returns one segment per sentence in
// transcript order.
//
// An undecodable source fails the whole call with a *types.DecodeError and no
// segments. A clip that cannot be written is logged and its segment is
// returned with an empty ClipPath, which the merge engine skips.
func (s *Segmenter) Split(sourcePath string, transcript []types.TranscriptSentence) ([]types.Segment, error) {
	source, err := audio.Load(sourcePath)
	if err != nil {
		var de *types.DecodeError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, &types.DecodeError{Path: sourcePath, Err: err}
	}

	segments := make([]types.Segment, 0, len(transcript))
	for _, sentence := range transcript {
		seg := types.Segment{
			SentenceID: sentence.SentenceID,
			BeginMs:    sentence.BeginMs,
			EndMs:      sentence.EndMs,
			Text:       sentence.Text,
		}

		clip := source.Slice(sentence.BeginMs, sentence.EndMs)
		if clip.DurationMs() < sentence.DurationMs() {
			log.Printf("WARNING: sentence %d window [%d, %d] runs past the end of %s (%dms)",
				sentence.SentenceID, sentence.BeginMs, sentence.EndMs, sourcePath, source.DurationMs())
		}

		clipPath := filepath.Join(s.outputDir, ClipName(sentence.SentenceID))
		if err := audio.Save(clipPath, clip); err != nil {
			log.Printf("WARNING: failed to save sentence %d clip: %v", sentence.SentenceID, err)
		} else {
			seg.ClipPath = clipPath
			log.Printf("Sentence %d audio saved to: %s", sentence.SentenceID, clipPath)
		}
		segments = append(segments, seg)
	}

	return segments, nil
}
