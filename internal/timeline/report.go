package timeline

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Action is what the merge engine did with one slot.
type Action string

const (
	ActionPadded     Action = "padded"
	ActionCompressed Action = "compressed"
	ActionExact      Action = "exact"
	ActionSkipped    Action = "skipped"
)

// SlotResult describes one sentence's contribution to the merged track.
// StartMs is where the clip was placed; DriftMs is how far the cursor ended
// up past the slot's end time.
type SlotResult struct {
	SentenceID int    `json:"sentence_id"`
	Action     Action `json:"action"`
	ClipMs     int    `json:"clip_ms"`
	TargetMs   int    `json:"target_ms"`
	StartMs    int    `json:"start_ms"`
	AppendedMs int    `json:"appended_ms"`
	DriftMs    int    `json:"drift_ms"`
	Reason     string `json:"reason,omitempty"`
}

// Report summarizes a merge.
type Report struct {
	Slots         []SlotResult `json:"slots"`
	Skipped       int          `json:"skipped"`
	DriftMeanMs   float64      `json:"drift_mean_ms"`
	DriftStdDevMs float64      `json:"drift_stddev_ms"`
	DriftMaxMs    int          `json:"drift_max_ms"`
}

func (r *Report) add(s SlotResult) {
	r.Slots = append(r.Slots, s)
	if s.Action == ActionSkipped {
		r.Skipped++
	}
}

func (r *Report) finish() {
	var drifts []float64
	for _, s := range r.Slots {
		if s.Action == ActionSkipped {
			continue
		}
		drifts = append(drifts, float64(s.DriftMs))
		if abs(s.DriftMs) > abs(r.DriftMaxMs) {
			r.DriftMaxMs = s.DriftMs
		}
	}
	if len(drifts) == 0 {
		return
	}
	r.DriftMeanMs = stat.Mean(drifts, nil)
	if len(drifts) > 1 {
		r.DriftStdDevMs = stat.StdDev(drifts, nil)
	}
	if math.IsNaN(r.DriftStdDevMs) {
		r.DriftStdDevMs = 0
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
