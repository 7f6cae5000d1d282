package timeline

import (
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/codebuildervaibhav/revoice/internal/audio"
	"github.com/codebuildervaibhav/revoice/internal/registry"
	"github.com/codebuildervaibhav/revoice/internal/types"
)

// CursorMode selects how the write cursor advances after each slot.
type CursorMode string

const (
	// CursorDrift advances by the duration actually appended, so rounding in
	// padding or compression can accumulate across sentences.
	CursorDrift CursorMode = "drift"
	// CursorAnchor trims or pads the output after every slot so the next
	// sentence starts from that slot's end time.
	CursorAnchor CursorMode = "anchor"
)

// ParseCursorMode validates a configured cursor mode. Empty selects drift.
func ParseCursorMode(s string) (CursorMode, error) {
	switch m := CursorMode(s); m {
	case "":
		return CursorDrift, nil
	case CursorDrift, CursorAnchor:
		return m, nil
	default:
		return "", fmt.Errorf("unknown cursor mode %q (want %q or %q)", s, CursorDrift, CursorAnchor)
	}
}

// Options configures a Merger. Zero values select 16kHz mono output, the
// pure-Go resampling stretcher and drift cursor mode.
type Options struct {
	Format     audio.Format
	Stretcher  audio.Stretcher
	CursorMode CursorMode
}

// Merger rebuilds one continuous track from a registry snapshot, fitting
// every clip into its sentence's original slot.
type Merger struct {
	format    audio.Format
	stretcher audio.Stretcher
	mode      CursorMode
}

// NewMerger creates a merger
func NewMerger(opts Options) *Merger {
	m := &Merger{
		format:    opts.Format,
		stretcher: opts.Stretcher,
		mode:      opts.CursorMode,
	}
	if !m.format.Valid() {
		m.format = audio.DefaultFormat
	}
	if m.stretcher == nil {
		m.stretcher = audio.ResampleStretcher{}
	}
	mode, err := ParseCursorMode(string(m.mode))
	if err != nil {
		log.Printf("WARNING: Merge: %v, using %s", err, CursorDrift)
		mode = CursorDrift
	}
	m.mode = mode
	return m
}

// Track is a reconstructed recording.
type Track struct {
	Clip       *audio.Clip
	DurationMs int
}

// Merge reconciles every snapshot entry into one buffer. It never fails:
// entries whose clip is missing or unreadable are skipped and reported, and
// their slot is left to the silence inserted before the next entry.
func (m *Merger) Merge(snap *registry.Snapshot) (*Track, *Report) {
	out := audio.NewClip(m.format)
	report := &Report{}

	for i := 0; i < snap.Len(); i++ {
		seg := snap.At(i)
		slot := SlotResult{
			SentenceID: seg.SentenceID,
			TargetMs:   seg.TargetMs(),
		}

		clip, err := m.loadClip(seg)
		if err != nil {
			log.Printf("WARNING: Merge: skipping sentence %d: %v", seg.SentenceID, err)
			slot.Action = ActionSkipped
			slot.Reason = err.Error()
			slot.StartMs = m.format.MsForFrames(out.Frames())
			report.add(slot)
			continue
		}

		beginFrames := m.format.FramesForMs(seg.BeginMs)
		if out.Frames() < beginFrames {
			out.AppendSilence(beginFrames - out.Frames())
		}
		slot.StartMs = m.format.MsForFrames(out.Frames())
		slot.ClipMs = clip.DurationMs()

		fitted, action, err := m.fit(clip, seg)
		if err != nil {
			log.Printf("WARNING: Merge: skipping sentence %d: %v", seg.SentenceID, err)
			slot.Action = ActionSkipped
			slot.Reason = err.Error()
			report.add(slot)
			continue
		}
		slot.Action = action
		slot.AppendedMs = fitted.DurationMs()
		if err := out.Append(fitted); err != nil {
			log.Printf("WARNING: Merge: skipping sentence %d: %v", seg.SentenceID, err)
			slot.Action = ActionSkipped
			slot.Reason = err.Error()
			report.add(slot)
			continue
		}

		if m.mode == CursorAnchor {
			endFrames := m.format.FramesForMs(seg.EndMs)
			if out.Frames() > endFrames {
				out.Truncate(endFrames)
			} else {
				out.AppendSilence(endFrames - out.Frames())
			}
		}
		slot.DriftMs = m.format.MsForFrames(out.Frames()) - seg.EndMs
		report.add(slot)
	}

	report.finish()
	return &Track{Clip: out, DurationMs: out.DurationMs()}, report
}

// MergeTo merges and exports the track as WAV at outputPath. An export
// failure is a *types.MergeError and no track is returned.
func (m *Merger) MergeTo(snap *registry.Snapshot, outputPath string) (*Track, *Report, error) {
	track, report := m.Merge(snap)
	if err := audio.Save(outputPath, track.Clip); err != nil {
		log.Printf("ERROR: Merge: failed to export %s: %v", outputPath, err)
		return nil, report, &types.MergeError{Path: outputPath, Err: err}
	}
	log.Printf("Merge complete: %s (%dms, %d sentences, %d skipped)",
		outputPath, track.DurationMs, snap.Len(), report.Skipped)
	return track, report, nil
}

func (m *Merger) loadClip(seg types.Segment) (*audio.Clip, error) {
	if seg.ClipPath == "" {
		return nil, errors.New("no clip recorded")
	}
	clip, err := audio.Load(seg.ClipPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.New("clip file does not exist: " + seg.ClipPath)
	}
	if err != nil {
		return nil, err
	}
	return clip.Convert(m.format), nil
}

// fit pads a short clip with trailing silence or time-compresses a long one
// so that it spans exactly the slot.
func (m *Merger) fit(clip *audio.Clip, seg types.Segment) (*audio.Clip, Action, error) {
	target := m.format.FramesForMs(seg.TargetMs())
	switch n := clip.Frames(); {
	case n < target:
		clip.AppendSilence(target - n)
		return clip, ActionPadded, nil
	case n > target:
		compressed, err := m.stretcher.Stretch(clip, target)
		if err != nil {
			return nil, "", err
		}
		return compressed, ActionCompressed, nil
	default:
		return clip, ActionExact, nil
	}
}
