// Package mix combines normalized note samples: chords, dynamic-layer
// crossfades and release fades.
package mix

import (
	"errors"
	"fmt"

	"github.com/cwbudde/piano-norm/dsp"
	"github.com/cwbudde/piano-norm/sample"
)

// ErrLayout is returned when buffers to be mixed have different layouts.
var ErrLayout = errors.New("mix: buffers have different channel layouts")

// DefaultChordFrames is the number of frames summed per chord note.
const DefaultChordFrames = 100000

// DefaultGroupSize is the number of keys per chord in Groups.
const DefaultGroupSize = 7

// DefaultRelease is the release ramp length, 90 ms at the sample rate.
const DefaultRelease = sample.Rate * 90 / 1000

// Chord sums the first frames frames of every sample named in keys. Shorter
// samples are zero padded. frames <= 0 uses the longest sample's length.
func Chord(c *sample.Collection, keys []string, frames int) (sample.Buffer, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("chord: no keys")
	}
	bufs := make([]sample.Buffer, len(keys))
	for i, k := range keys {
		b, ok := c.Get(k)
		if !ok {
			return nil, fmt.Errorf("chord: unknown key %q", k)
		}
		bufs[i] = b
	}
	if frames <= 0 {
		for _, b := range bufs {
			frames = max(frames, b.Len())
		}
	}
	return sum(bufs, nil, frames)
}

// sum adds gains[i]*bufs[i] over frames frames. A nil gains means unity.
func sum(bufs []sample.Buffer, gains []float64, frames int) (sample.Buffer, error) {
	layout := bufs[0].Layout()
	out := make([][]float64, len(bufs[0].Channels()))
	for ch := range out {
		out[ch] = make([]float64, frames)
	}
	for i, b := range bufs {
		if b.Layout() != layout {
			return nil, fmt.Errorf("%w: %s and %s", ErrLayout, layout, b.Layout())
		}
		g := 1.0
		if gains != nil {
			g = gains[i]
		}
		if g == 0 {
			continue
		}
		src := sample.Head(b, frames)
		if g != 1 {
			src = src.Scale(g)
		}
		for ch, x := range src.Channels() {
			dsp.AddInto(out[ch], x)
		}
	}
	return sample.FromChannels(out)
}

// Groups splits keys into consecutive runs of size keys; the last run may be
// shorter.
func Groups(keys []string, size int) [][]string {
	if size <= 0 {
		size = DefaultGroupSize
	}
	var out [][]string
	for len(keys) > 0 {
		n := min(size, len(keys))
		out = append(out, keys[:n:n])
		keys = keys[n:]
	}
	return out
}

// Weights are the gains of the three dynamic layers for one velocity.
type Weights struct {
	Soft   float64
	Medium float64
	Loud   float64
}

// Layer breakpoints on a 0-128 velocity scale.
const (
	softEnd   = 32.0
	mediumTop = 80.0
	loudStart = 112.0
)

// LayerWeights crossfades soft into medium between velocity 32 and 80 and
// medium into loud between 80 and 112. amp is the velocity in [0, 1]; the
// weights always sum to one.
func LayerWeights(amp float64) Weights {
	v := amp * 128
	switch {
	case v <= softEnd:
		return Weights{Soft: 1}
	case v < mediumTop:
		t := (v - softEnd) / (mediumTop - softEnd)
		return Weights{Soft: 1 - t, Medium: t}
	case v < loudStart:
		t := (v - mediumTop) / (loudStart - mediumTop)
		return Weights{Medium: 1 - t, Loud: t}
	default:
		return Weights{Loud: 1}
	}
}

// Blend mixes the three recordings of one key by LayerWeights(amp). The
// result has the medium layer's length.
func Blend(soft, medium, loud sample.Buffer, amp float64) (sample.Buffer, error) {
	w := LayerWeights(amp)
	return sum(
		[]sample.Buffer{soft, medium, loud},
		[]float64{w.Soft, w.Medium, w.Loud},
		medium.Len(),
	)
}

// FadeOut returns a copy of buf whose last frames frames ramp linearly down
// to silence.
func FadeOut(buf sample.Buffer, frames int) sample.Buffer {
	out := buf.Clone()
	n := out.Len()
	frames = min(frames, n)
	if frames <= 0 {
		return out
	}
	start := n - frames
	for _, ch := range out.Channels() {
		for i := start; i < n; i++ {
			ch[i] *= float64(n-1-i) / float64(frames)
		}
	}
	return out
}

// Limit returns a copy of buf scaled so its sample peak is at most limit.
// Buffers already within the limit are returned unchanged.
func Limit(buf sample.Buffer, limit float64) sample.Buffer {
	var peak float64
	for _, ch := range buf.Channels() {
		peak = max(peak, dsp.Max(dsp.Rectify(ch)))
	}
	if peak <= limit || peak == 0 {
		return buf
	}
	out := buf.Clone()
	for _, ch := range out.Channels() {
		dsp.ScaleInPlace(ch, limit/peak)
	}
	return out
}
