package audio

import "fmt"

// Stretcher changes the tempo of a clip so that it spans exactly frames
// sample frames.
type Stretcher interface {
	Stretch(c *Clip, frames int) (*Clip, error)
}

// ResampleStretcher compresses or expands by linear interpolation. It is
// exact in length and has no external dependencies, but shifts pitch along
// with tempo.
type ResampleStretcher struct{}

// Stretch implements Stretcher.
func (ResampleStretcher) Stretch(c *Clip, frames int) (*Clip, error) {
	if frames < 0 {
		return nil, fmt.Errorf("negative target length %d", frames)
	}
	return resample(c, frames), nil
}

// resample maps the clip onto exactly frames output frames.
func resample(c *Clip, frames int) *Clip {
	ch := c.Format.Channels
	src := c.Frames()
	out := &Clip{Format: c.Format, Samples: make([]int, frames*ch)}
	if src == 0 || frames == 0 {
		return out
	}
	if src == frames {
		copy(out.Samples, c.Samples)
		return out
	}
	step := float64(src) / float64(frames)
	for i := 0; i < frames; i++ {
		pos := float64(i) * step
		i0 := int(pos)
		if i0 >= src {
			i0 = src - 1
		}
		i1 := i0 + 1
		if i1 >= src {
			i1 = src - 1
		}
		frac := pos - float64(i0)
		for k := 0; k < ch; k++ {
			a := float64(c.Samples[i0*ch+k])
			b := float64(c.Samples[i1*ch+k])
			out.Samples[i*ch+k] = int(a + (b-a)*frac)
		}
	}
	return out
}

// fitFrames pads with silence or trims so the clip has exactly frames frames.
func fitFrames(c *Clip, frames int) *Clip {
	switch n := c.Frames(); {
	case n > frames:
		c.Truncate(frames)
	case n < frames:
		c.AppendSilence(frames - n)
	}
	return c
}
