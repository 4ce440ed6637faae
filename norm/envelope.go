// Package norm extracts amplitude envelopes from note samples and uses them
// to balance stereo channels, equalize peak loudness and line up attacks
// across a collection.
package norm

import (
	"github.com/cwbudde/piano-norm/dsp"
	"github.com/cwbudde/piano-norm/sample"
)

// Mode selects how stereo channels enter the envelope.
type Mode int

const (
	// Merged sums both channels before averaging. Used for alignment and
	// loudness decisions.
	Merged Mode = iota
	// Split averages each channel on its own and keeps them side by side.
	Split
)

// Envelope is the local average absolute amplitude of a buffer. It holds
// one sequence for mono or merged input and two for split stereo input.
type Envelope struct {
	channels [][]float64
}

// Amplitude rectifies buf and smooths it with a boxcar of window samples.
// Each envelope sequence has buf.Len()-window+1 values. A window longer than
// the buffer, or window <= 0, yields an empty envelope.
func Amplitude(buf sample.Buffer, window int, mode Mode) Envelope {
	switch b := buf.(type) {
	case sample.Mono:
		return Envelope{channels: [][]float64{dsp.RunningMean(dsp.Rectify(b.Samples), window)}}
	case sample.Stereo:
		l := dsp.Rectify(b.Left)
		r := dsp.Rectify(b.Right)
		if mode == Split {
			return Envelope{channels: [][]float64{
				dsp.RunningMean(l, window),
				dsp.RunningMean(r, window),
			}}
		}
		dsp.AddInto(l, r)
		return Envelope{channels: [][]float64{dsp.RunningMean(l, window)}}
	}
	return Envelope{}
}

// Len returns the number of envelope frames.
func (e Envelope) Len() int {
	if len(e.channels) == 0 {
		return 0
	}
	return len(e.channels[0])
}

// NumChannels returns 1 for mono or merged envelopes and 2 for split ones.
func (e Envelope) NumChannels() int { return len(e.channels) }

// Channel returns envelope channel i. The slice must not be modified.
func (e Envelope) Channel(i int) []float64 { return e.channels[i] }

// Values returns the first envelope channel.
func (e Envelope) Values() []float64 {
	if len(e.channels) == 0 {
		return nil
	}
	return e.channels[0]
}

// Peak returns the maximum over all channels, or 0 for an empty envelope.
func (e Envelope) Peak() float64 {
	var peak float64
	for _, ch := range e.channels {
		if m := dsp.Max(ch); m > peak {
			peak = m
		}
	}
	return peak
}

// FirstAbove returns the first index at which the first channel strictly
// exceeds threshold, or -1.
func (e Envelope) FirstAbove(threshold float64) int {
	return dsp.FirstAbove(e.Values(), threshold)
}
