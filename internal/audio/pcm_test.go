package audio

import "testing"

func TestFramesAndMs(t *testing.T) {
	tests := []struct {
		name       string
		format     Format
		ms         int
		wantFrames int
	}{
		{"16k one second", DefaultFormat, 1000, 16000},
		{"16k one ms", DefaultFormat, 1, 16},
		{"44.1k rounds down", Format{SampleRate: 44100, Channels: 2, BitDepth: 16}, 1, 44},
		{"negative is zero", DefaultFormat, -5, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.format.FramesForMs(tc.ms); got != tc.wantFrames {
				t.Errorf("FramesForMs(%d) = %d; want %d", tc.ms, got, tc.wantFrames)
			}
		})
	}
}

func TestSilenceAndTone(t *testing.T) {
	s := Silence(DefaultFormat, 250)
	if s.DurationMs() != 250 {
		t.Fatalf("silence duration = %d; want 250", s.DurationMs())
	}
	if !s.IsSilent(0, s.Frames()) {
		t.Errorf("silence contains non-zero samples")
	}

	tone := Tone(DefaultFormat, 100, 1000)
	if tone.DurationMs() != 100 {
		t.Fatalf("tone duration = %d; want 100", tone.DurationMs())
	}
	for i, v := range tone.Samples {
		if v == 0 {
			t.Fatalf("tone sample %d is zero", i)
		}
	}
}

func TestSliceClampsToClip(t *testing.T) {
	c := Tone(DefaultFormat, 1000, 500)

	mid := c.Slice(200, 700)
	if mid.DurationMs() != 500 {
		t.Errorf("mid slice = %dms; want 500", mid.DurationMs())
	}
	past := c.Slice(800, 5000)
	if past.DurationMs() != 200 {
		t.Errorf("slice past end = %dms; want 200", past.DurationMs())
	}
	empty := c.Slice(2000, 3000)
	if empty.Frames() != 0 {
		t.Errorf("slice beyond clip has %d frames; want 0", empty.Frames())
	}

	mid.Samples[0] = 42
	if c.Samples[c.Format.FramesForMs(200)] == 42 {
		t.Errorf("slice shares memory with its source")
	}
}

func TestAppendRequiresSameFormat(t *testing.T) {
	a := Silence(DefaultFormat, 10)
	b := Silence(Format{SampleRate: 8000, Channels: 1, BitDepth: 16}, 10)
	if err := a.Append(b); err == nil {
		t.Fatal("expected format mismatch error")
	}
	if err := a.Append(Silence(DefaultFormat, 15)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if a.DurationMs() != 25 {
		t.Errorf("duration = %d; want 25", a.DurationMs())
	}
}

func TestTruncateAndPad(t *testing.T) {
	c := Tone(DefaultFormat, 100, 10)
	c.Truncate(DefaultFormat.FramesForMs(40))
	if c.DurationMs() != 40 {
		t.Errorf("after Truncate = %dms; want 40", c.DurationMs())
	}
	fitFrames(c, DefaultFormat.FramesForMs(60))
	if c.DurationMs() != 60 {
		t.Errorf("after fit = %dms; want 60", c.DurationMs())
	}
	if !c.IsSilent(DefaultFormat.FramesForMs(40), c.Frames()) {
		t.Errorf("padding is not silent")
	}
}

func TestConvert(t *testing.T) {
	stereo := Format{SampleRate: 32000, Channels: 2, BitDepth: 16}
	c := Tone(stereo, 500, 300)

	got := c.Convert(DefaultFormat)
	if got.Format != DefaultFormat {
		t.Fatalf("format = %+v; want %+v", got.Format, DefaultFormat)
	}
	if got.DurationMs() != 500 {
		t.Errorf("duration after convert = %d; want 500", got.DurationMs())
	}

	eight := Format{SampleRate: 16000, Channels: 1, BitDepth: 8}
	low := &Clip{Format: eight, Samples: []int{1, -2}}
	up := low.Convert(DefaultFormat)
	if up.Samples[0] != 256 || up.Samples[1] != -512 {
		t.Errorf("depth rescale = %v; want [256 -512]", up.Samples)
	}

	if same := got.Convert(DefaultFormat); same != got {
		t.Errorf("converting to the same format should return the clip itself")
	}
}
