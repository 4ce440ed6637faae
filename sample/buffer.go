// Package sample holds the in-memory representation of recorded notes:
// mono or stereo float64 buffers and ordered collections of them.
package sample

import (
	"errors"
	"fmt"
)

// Rate is the only sample rate used by the pipeline.
const Rate = 44100

// ErrLengthMismatch is returned when stereo channels differ in length.
var ErrLengthMismatch = errors.New("sample: left/right length mismatch")

// ErrChannels is returned for channel counts other than one or two.
var ErrChannels = errors.New("sample: only mono and stereo are supported")

// Layout identifies the channel layout of a Buffer.
type Layout int

const (
	LayoutMono Layout = iota
	LayoutStereo
)

func (l Layout) String() string {
	switch l {
	case LayoutMono:
		return "mono"
	case LayoutStereo:
		return "stereo"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// Buffer is a mono or stereo sample buffer. The only implementations are
// Mono and Stereo, so a type switch over them is exhaustive.
//
// Buffers are values: operations return new buffers and never modify the
// receiver's sample data.
type Buffer interface {
	// Len returns the number of frames.
	Len() int
	Layout() Layout
	// Channels returns one slice per channel. The slices alias the buffer.
	Channels() [][]float64
	// Scale returns a copy with every sample multiplied by g.
	Scale(g float64) Buffer
	// Slice returns frames [start, end). Out-of-range bounds are clamped;
	// negative indices never wrap.
	Slice(start, end int) Buffer
	// Mix returns the average of all channels.
	Mix() []float64
	Clone() Buffer

	sealed()
}

// Mono is a single-channel buffer.
type Mono struct {
	Samples []float64
}

// NewMono wraps samples without copying.
func NewMono(samples []float64) Mono {
	return Mono{Samples: samples}
}

func (m Mono) Len() int              { return len(m.Samples) }
func (m Mono) Layout() Layout        { return LayoutMono }
func (m Mono) Channels() [][]float64 { return [][]float64{m.Samples} }
func (m Mono) sealed()               {}

func (m Mono) Scale(g float64) Buffer {
	return Mono{Samples: scaled(m.Samples, g)}
}

func (m Mono) Slice(start, end int) Buffer {
	lo, hi := clampRange(start, end, len(m.Samples))
	return Mono{Samples: m.Samples[lo:hi:hi]}
}

func (m Mono) Mix() []float64 {
	return append([]float64(nil), m.Samples...)
}

func (m Mono) Clone() Buffer {
	return Mono{Samples: append([]float64(nil), m.Samples...)}
}

// Stereo is a two-channel buffer with equal-length channels.
type Stereo struct {
	Left  []float64
	Right []float64
}

// NewStereo wraps two channels without copying.
func NewStereo(left, right []float64) (Stereo, error) {
	if len(left) != len(right) {
		return Stereo{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(left), len(right))
	}
	return Stereo{Left: left, Right: right}, nil
}

// Interleaved splits an L/R interleaved frame sequence into a Stereo buffer.
// A trailing half frame is dropped.
func Interleaved(data []float64) Stereo {
	n := len(data) / 2
	left := make([]float64, n)
	right := make([]float64, n)
	for i := 0; i < n; i++ {
		left[i] = data[i*2]
		right[i] = data[i*2+1]
	}
	return Stereo{Left: left, Right: right}
}

func (s Stereo) Len() int              { return len(s.Left) }
func (s Stereo) Layout() Layout        { return LayoutStereo }
func (s Stereo) Channels() [][]float64 { return [][]float64{s.Left, s.Right} }
func (s Stereo) sealed()               {}

func (s Stereo) Scale(g float64) Buffer {
	return Stereo{Left: scaled(s.Left, g), Right: scaled(s.Right, g)}
}

func (s Stereo) Slice(start, end int) Buffer {
	lo, hi := clampRange(start, end, len(s.Left))
	return Stereo{Left: s.Left[lo:hi:hi], Right: s.Right[lo:hi:hi]}
}

func (s Stereo) Mix() []float64 {
	out := make([]float64, len(s.Left))
	for i := range out {
		out[i] = 0.5 * (s.Left[i] + s.Right[i])
	}
	return out
}

func (s Stereo) Clone() Buffer {
	return Stereo{
		Left:  append([]float64(nil), s.Left...),
		Right: append([]float64(nil), s.Right...),
	}
}

// Interleave returns L/R interleaved frames.
func (s Stereo) Interleave() []float64 {
	out := make([]float64, len(s.Left)*2)
	for i := range s.Left {
		out[i*2] = s.Left[i]
		out[i*2+1] = s.Right[i]
	}
	return out
}

// FromChannels wraps one or two channel slices without copying.
func FromChannels(chs [][]float64) (Buffer, error) {
	switch len(chs) {
	case 1:
		return NewMono(chs[0]), nil
	case 2:
		s, err := NewStereo(chs[0], chs[1])
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: got %d channels", ErrChannels, len(chs))
}

// Head returns at most the first n frames of b.
func Head(b Buffer, n int) Buffer {
	if n < 0 {
		n = 0
	}
	return b.Slice(0, n)
}

// From returns the frames of b starting at start, clamped to [0, Len].
func From(b Buffer, start int) Buffer {
	return b.Slice(start, b.Len())
}

func scaled(in []float64, g float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = v * g
	}
	return out
}

func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	if end < 0 {
		start, end = 0, 0
	}
	return start, end
}
