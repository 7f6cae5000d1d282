package audio

import (
	"math"
	"strconv"
	"strings"
	"testing"
)

func TestResampleStretcherExactLength(t *testing.T) {
	tests := []struct {
		name     string
		clipMs   int
		targetMs int
	}{
		{"compress by two", 4000, 2000},
		{"compress odd factor", 3001, 1234},
		{"expand", 500, 800},
		{"identity", 700, 700},
		{"to nothing", 300, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Tone(DefaultFormat, tc.clipMs, 100)
			frames := DefaultFormat.FramesForMs(tc.targetMs)
			got, err := ResampleStretcher{}.Stretch(c, frames)
			if err != nil {
				t.Fatalf("Stretch: %v", err)
			}
			if got.Frames() != frames {
				t.Errorf("frames = %d; want %d", got.Frames(), frames)
			}
			if got.DurationMs() != tc.targetMs {
				t.Errorf("duration = %d; want %d", got.DurationMs(), tc.targetMs)
			}
		})
	}
}

func TestResampleStretcherRejectsNegative(t *testing.T) {
	if _, err := (ResampleStretcher{}).Stretch(Tone(DefaultFormat, 10, 1), -1); err == nil {
		t.Fatal("expected error for negative length")
	}
}

func TestAtempoChain(t *testing.T) {
	tests := []struct {
		factor float64
		stages int
	}{
		{1.5, 1},
		{2.0, 1},
		{5.0, 3},
		{0.25, 2},
	}
	for _, tc := range tests {
		chain := AtempoChain(tc.factor)
		parts := strings.Split(chain, ",")
		if len(parts) != tc.stages {
			t.Errorf("AtempoChain(%v) = %q; want %d stages", tc.factor, chain, tc.stages)
			continue
		}
		product := 1.0
		for _, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimPrefix(p, "atempo="), 64)
			if err != nil {
				t.Fatalf("bad stage %q", p)
			}
			if v < 0.5 || v > 2.0 {
				t.Errorf("stage %q outside [0.5, 2.0]", p)
			}
			product *= v
		}
		if math.Abs(product-tc.factor) > 1e-4 {
			t.Errorf("AtempoChain(%v) product = %v", tc.factor, product)
		}
	}
}
