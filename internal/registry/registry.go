package registry

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

// Registry is the editable sentence timeline of one session. Entries are
// keyed by sentence id and are never created or removed after seeding; only
// their text and clip fields change.
//
// Writers hold the structure lock shared and the entry lock exclusively, so
// edits to different sentences run concurrently while edits to the same
// sentence are serialized. Snapshot takes the structure lock exclusively and
// therefore observes no edit half-applied.
type Registry struct {
	mu      sync.RWMutex
	order   []int
	entries map[int]*entry
	history *History
}

type entry struct {
	mu  sync.Mutex
	seg types.Segment
}

// New seeds a registry from the segmenter output. Sentence ids must be unique.
func New(segments []types.Segment) (*Registry, error) {
	r := &Registry{
		order:   make([]int, 0, len(segments)),
		entries: make(map[int]*entry, len(segments)),
		history: newHistory(),
	}
	for _, seg := range segments {
		if _, dup := r.entries[seg.SentenceID]; dup {
			return nil, fmt.Errorf("duplicate sentence id %d", seg.SentenceID)
		}
		r.entries[seg.SentenceID] = &entry{seg: seg}
		r.order = append(r.order, seg.SentenceID)
	}
	sort.Ints(r.order)
	return r, nil
}

// Len returns the number of sentences.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// IDs returns the sentence ids in ascending order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, len(r.order))
	copy(ids, r.order)
	return ids
}

// ErrSuperseded reports that a sentence's text changed while a clip for
// its previous text was being produced.
var ErrSuperseded = errors.New("sentence text changed while its clip was produced")

// Get returns a copy of one entry.
func (r *Registry) Get(sentenceID int) (types.Segment, error) {
	var seg types.Segment
	err := r.update(sentenceID, func(s *types.Segment) error {
		seg = *s
		return nil
	})
	return seg, err
}

// UpsertText replaces only the text of an existing sentence.
func (r *Registry) UpsertText(sentenceID int, text string) error {
	return r.update(sentenceID, func(s *types.Segment) error {
		r.setText(s, text)
		return nil
	})
}

// UpsertClip replaces only the clip location fields of an existing sentence.
func (r *Registry) UpsertClip(sentenceID int, clipPath, clipRef string) error {
	return r.update(sentenceID, func(s *types.Segment) error {
		s.ClipPath = clipPath
		s.ClipRef = clipRef
		return nil
	})
}

// UpsertClipIf installs clip fields only while the sentence text still
// equals expectedText, failing with ErrSuperseded otherwise. install, when
// set, runs under the entry lock before the fields change, so a file it
// moves into place is the one the entry points at; an install error leaves
// the entry untouched.
func (r *Registry) UpsertClipIf(sentenceID int, expectedText, clipPath, clipRef string, install func() error) error {
	return r.update(sentenceID, func(s *types.Segment) error {
		if s.Text != expectedText {
			return fmt.Errorf("sentence %d: %w", sentenceID, ErrSuperseded)
		}
		if install != nil {
			if err := install(); err != nil {
				return err
			}
		}
		s.ClipPath = clipPath
		s.ClipRef = clipRef
		return nil
	})
}

// Replace installs new text and clip fields for a sentence in one atomic
// step. Timestamps are kept; they are fixed once the timeline exists.
func (r *Registry) Replace(sentenceID int, text, clipPath, clipRef string) error {
	return r.ReplaceWith(sentenceID, text, clipPath, clipRef, nil)
}

// ReplaceWith is Replace with an install step run under the entry lock, as
// in UpsertClipIf.
func (r *Registry) ReplaceWith(sentenceID int, text, clipPath, clipRef string, install func() error) error {
	return r.update(sentenceID, func(s *types.Segment) error {
		if install != nil {
			if err := install(); err != nil {
				return err
			}
		}
		r.setText(s, text)
		s.ClipPath = clipPath
		s.ClipRef = clipRef
		return nil
	})
}

// History returns the text edits applied so far, oldest first.
func (r *Registry) History() []Edit {
	return r.history.list()
}

// setText changes the text and logs the edit. Callers hold the entry lock,
// so edits to one sentence are logged in the order they were applied.
func (r *Registry) setText(s *types.Segment, text string) {
	if s.Text == text {
		return
	}
	r.history.record(s.SentenceID, s.Text, text)
	s.Text = text
}

func (r *Registry) update(sentenceID int, fn func(*types.Segment) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[sentenceID]
	if !ok {
		return &types.NotFoundError{Kind: "sentence", ID: strconv.Itoa(sentenceID)}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&e.seg)
}

// Snapshot returns an immutable copy ordered by sentence id. It fails with a
// *types.TimelineOrderError when the timeline is not chronological.
func (r *Registry) Snapshot() (*Snapshot, error) {
	r.mu.Lock()
	segments := make([]types.Segment, 0, len(r.order))
	for _, id := range r.order {
		segments = append(segments, r.entries[id].seg)
	}
	r.mu.Unlock()

	return NewSnapshot(segments)
}
