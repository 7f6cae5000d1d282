package registry

import (
	"sort"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

// Snapshot is a read-only, sentence-id ordered view of a registry taken at
// one instant. The merge engine and the subtitle emitter only read snapshots.
type Snapshot struct {
	entries []types.Segment
}

// NewSnapshot copies segments, orders them by sentence id and validates the
// timeline. Slots must be non-empty, start at or after zero, and follow one
// another without overlap in sentence id order. Overlapping slots are
// rejected rather than clamped.
func NewSnapshot(segments []types.Segment) (*Snapshot, error) {
	entries := make([]types.Segment, len(segments))
	copy(entries, segments)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SentenceID < entries[j].SentenceID
	})

	for i, seg := range entries {
		prev := 0
		if i > 0 {
			prev = entries[i-1].SentenceID
		}
		switch {
		case seg.BeginMs < 0:
			return nil, &types.TimelineOrderError{Prev: prev, Next: seg.SentenceID, Reason: "slot starts before zero"}
		case seg.EndMs <= seg.BeginMs:
			return nil, &types.TimelineOrderError{Prev: prev, Next: seg.SentenceID, Reason: "empty slot"}
		}
		if i == 0 {
			continue
		}
		last := entries[i-1]
		switch {
		case seg.SentenceID == last.SentenceID:
			return nil, &types.TimelineOrderError{Prev: prev, Next: seg.SentenceID, Reason: "duplicate sentence id"}
		case seg.BeginMs < last.BeginMs:
			return nil, &types.TimelineOrderError{Prev: prev, Next: seg.SentenceID, Reason: "starts before previous sentence"}
		case seg.BeginMs < last.EndMs:
			return nil, &types.TimelineOrderError{Prev: prev, Next: seg.SentenceID, Reason: "overlaps previous slot"}
		}
	}

	return &Snapshot{entries: entries}, nil
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Entries returns a copy of the entries in sentence id order.
func (s *Snapshot) Entries() []types.Segment {
	if s == nil {
		return nil
	}
	out := make([]types.Segment, len(s.entries))
	copy(out, s.entries)
	return out
}

// At returns entry i.
func (s *Snapshot) At(i int) types.Segment {
	return s.entries[i]
}
