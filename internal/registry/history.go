package registry

import (
	"sync"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Edit is one applied text change. Delta is the diff-match-patch delta that
// turns Before into After; Distance is its Levenshtein distance.
type Edit struct {
	SentenceID int       `json:"sentence_id"`
	Before     string    `json:"before"`
	After      string    `json:"after"`
	Delta      string    `json:"delta"`
	Distance   int       `json:"distance"`
	At         time.Time `json:"at"`
}

// History is an append-only log of text edits.
type History struct {
	mu    sync.Mutex
	dmp   *diffmatchpatch.DiffMatchPatch
	edits []Edit
}

func newHistory() *History {
	return &History{dmp: diffmatchpatch.New()}
}

func (h *History) record(sentenceID int, before, after string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	diffs := h.dmp.DiffMain(before, after, false)
	diffs = h.dmp.DiffCleanupSemantic(diffs)
	h.edits = append(h.edits, Edit{
		SentenceID: sentenceID,
		Before:     before,
		After:      after,
		Delta:      h.dmp.DiffToDelta(diffs),
		Distance:   h.dmp.DiffLevenshtein(diffs),
		At:         time.Now(),
	})
}

func (h *History) list() []Edit {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Edit, len(h.edits))
	copy(out, h.edits)
	return out
}
