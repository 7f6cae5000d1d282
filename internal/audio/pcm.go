package audio

import "fmt"

// Format describes interleaved integer PCM.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is what uploads are normalized to: 16kHz mono 16-bit.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1, BitDepth: 16}

// Valid reports whether the format can carry samples.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && f.BitDepth > 0
}

// FramesForMs converts milliseconds to a frame count, rounding down.
func (f Format) FramesForMs(ms int) int {
	if ms <= 0 {
		return 0
	}
	return int(int64(ms) * int64(f.SampleRate) / 1000)
}

// MsForFrames converts a frame count to milliseconds, rounding down.
func (f Format) MsForFrames(frames int) int {
	if frames <= 0 || f.SampleRate <= 0 {
		return 0
	}
	return int(int64(frames) * 1000 / int64(f.SampleRate))
}

// Clip is an in-memory audio buffer. Samples are interleaved by channel.
type Clip struct {
	Format  Format
	Samples []int
}

// NewClip returns an empty clip in the given format.
func NewClip(f Format) *Clip {
	return &Clip{Format: f}
}

// Silence returns a clip of ms milliseconds of digital silence.
func Silence(f Format, ms int) *Clip {
	return &Clip{Format: f, Samples: make([]int, f.FramesForMs(ms)*f.Channels)}
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int {
	if c == nil || c.Format.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Format.Channels
}

// DurationMs returns the clip duration in whole milliseconds.
func (c *Clip) DurationMs() int {
	if c == nil {
		return 0
	}
	return c.Format.MsForFrames(c.Frames())
}

// Slice returns a copy of [beginMs, endMs). Bounds are clamped to the clip,
// so a window running past the end yields a shorter clip.
func (c *Clip) Slice(beginMs, endMs int) *Clip {
	from := c.Format.FramesForMs(beginMs)
	to := c.Format.FramesForMs(endMs)
	return c.sliceFrames(from, to)
}

func (c *Clip) sliceFrames(from, to int) *Clip {
	n := c.Frames()
	if from < 0 {
		from = 0
	}
	if to > n {
		to = n
	}
	out := NewClip(c.Format)
	if from >= to {
		return out
	}
	ch := c.Format.Channels
	out.Samples = make([]int, (to-from)*ch)
	copy(out.Samples, c.Samples[from*ch:to*ch])
	return out
}

// Append adds other to the end of c. Both clips must share a format.
func (c *Clip) Append(other *Clip) error {
	if other == nil {
		return nil
	}
	if other.Format != c.Format {
		return fmt.Errorf("format mismatch: %+v vs %+v", c.Format, other.Format)
	}
	c.Samples = append(c.Samples, other.Samples...)
	return nil
}

// AppendSilence pads the clip with frames of silence.
func (c *Clip) AppendSilence(frames int) {
	if frames <= 0 {
		return
	}
	c.Samples = append(c.Samples, make([]int, frames*c.Format.Channels)...)
}

// Truncate drops everything after the given frame count.
func (c *Clip) Truncate(frames int) {
	if frames < 0 {
		frames = 0
	}
	if frames < c.Frames() {
		c.Samples = c.Samples[:frames*c.Format.Channels]
	}
}

// IsSilent reports whether every sample in frames [from, to) is zero.
func (c *Clip) IsSilent(from, to int) bool {
	ch := c.Format.Channels
	if to > c.Frames() {
		to = c.Frames()
	}
	for i := from * ch; i < to*ch; i++ {
		if c.Samples[i] != 0 {
			return false
		}
	}
	return true
}

// Convert returns the clip in format f: channels are averaged down or
// duplicated up, bit depth is rescaled and the sample rate linearly
// resampled. A clip already in f is returned unchanged.
func (c *Clip) Convert(f Format) *Clip {
	if c.Format == f {
		return c
	}
	out := c.convertChannels(f.Channels)
	out = out.convertDepth(f.BitDepth)
	if out.Format.SampleRate != f.SampleRate {
		frames := int(int64(out.Frames()) * int64(f.SampleRate) / int64(out.Format.SampleRate))
		out = resample(out, frames)
		out.Format.SampleRate = f.SampleRate
	}
	return out
}

func (c *Clip) convertChannels(channels int) *Clip {
	src := c.Format.Channels
	if src == channels {
		return c
	}
	frames := c.Frames()
	out := &Clip{Format: c.Format, Samples: make([]int, frames*channels)}
	out.Format.Channels = channels
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < src; ch++ {
			sum += c.Samples[i*src+ch]
		}
		mono := sum / src
		for ch := 0; ch < channels; ch++ {
			out.Samples[i*channels+ch] = mono
		}
	}
	return out
}

func (c *Clip) convertDepth(depth int) *Clip {
	if c.Format.BitDepth == depth || depth <= 0 {
		return c
	}
	out := &Clip{Format: c.Format, Samples: make([]int, len(c.Samples))}
	out.Format.BitDepth = depth
	shift := depth - c.Format.BitDepth
	for i, s := range c.Samples {
		if shift > 0 {
			out.Samples[i] = s << uint(shift)
		} else {
			out.Samples[i] = s >> uint(-shift)
		}
	}
	return out
}

// Tone returns ms milliseconds of a constant-level square wave. Every sample
// is non-zero, which makes it easy to tell apart from padding silence.
func Tone(f Format, ms int, level int) *Clip {
	c := Silence(f, ms)
	for i := range c.Samples {
		frame := i / f.Channels
		if (frame/8)%2 == 0 {
			c.Samples[i] = level
		} else {
			c.Samples[i] = -level
		}
	}
	return c
}
