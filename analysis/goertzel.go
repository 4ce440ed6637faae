// Package analysis measures the frequency content and levels of note
// samples.
package analysis

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/spectrum"
)

// ErrShortWindow is returned when fewer samples than the window size are
// passed to an Estimator.
var ErrShortWindow = errors.New("fewer samples than window size")

// ErrFrequency is returned for frequencies outside [0, sampleRate/2].
var ErrFrequency = errors.New("frequency outside the analysable band")

// Estimator measures the energy at a handful of frequencies over a fixed
// window with one second-order resonator per frequency.
//
// Each call costs O(window * frequencies) and shares nothing between
// frequencies. For more than roughly log2(window) frequencies a full FFT
// (see DominantFrequency) is cheaper.
//
// An Estimator carries only its configuration and may be shared between
// goroutines.
type Estimator struct {
	window     int
	sampleRate float64
}

// NewEstimator returns an estimator reading window samples per call.
func NewEstimator(window int, sampleRate float64) (*Estimator, error) {
	if window <= 0 {
		return nil, fmt.Errorf("estimator: window must be > 0, got %d", window)
	}
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("estimator: sample rate must be > 0, got %v", sampleRate)
	}
	return &Estimator{window: window, sampleRate: sampleRate}, nil
}

// Window returns the number of samples read per call.
func (e *Estimator) Window() int { return e.window }

// SampleRate returns the configured sample rate in Hz.
func (e *Estimator) SampleRate() float64 { return e.sampleRate }

// Bin returns the fractional DFT bin of freq for this window.
func (e *Estimator) Bin(freq float64) float64 {
	return freq * float64(e.window) / e.sampleRate
}

// Amp returns q1² + q2² - coeff*q1*q2 for every frequency in freqs, in the
// same order, computed over the first Window() samples. Frequencies must lie
// in [0, sampleRate/2]; an empty request returns an empty result.
func (e *Estimator) Amp(samples []float64, freqs []float64) ([]float64, error) {
	if len(samples) < e.window {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrShortWindow, len(samples), e.window)
	}
	out := make([]float64, len(freqs))
	if len(freqs) == 0 {
		return out, nil
	}
	x := samples[:e.window]
	nyquist := e.sampleRate / 2

	// The resonator bank only takes the open band (0, fs/2). At DC and
	// Nyquist the coefficient is ±2 and the power is a squared sum.
	var inner []float64
	var at []int
	for i, f := range freqs {
		switch {
		case !(f >= 0 && f <= nyquist):
			return nil, fmt.Errorf("%w: %v Hz outside [0, %v]", ErrFrequency, f, nyquist)
		case f == 0:
			out[i] = edgePower(x, 1)
		case f == nyquist:
			out[i] = edgePower(x, -1)
		default:
			inner = append(inner, f)
			at = append(at, i)
		}
	}
	if len(inner) == 0 {
		return out, nil
	}

	// k/N with k = freq*N/fs reduces to freq/fs, which is what the bank's
	// coefficients are built from.
	bank, err := spectrum.NewGoertzelBank(inner, e.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("estimator: %w", err)
	}
	bank.ProcessBlock(x)
	powers := make([]float64, len(inner))
	bank.Powers(powers)
	for j, i := range at {
		out[i] = powers[j]
	}
	return out, nil
}

// edgePower is the resonator power for coeff = 2*sign: the squared sum of x
// at DC (sign 1) and the squared alternating sum at Nyquist (sign -1).
func edgePower(x []float64, sign float64) float64 {
	var sum float64
	a := 1.0
	for _, v := range x {
		sum += a * v
		a *= sign
	}
	return sum * sum
}

// Estimate is Amp keyed by the requested frequency.
type Estimate struct {
	Freqs []float64
	Mags  []float64
}

// Get returns the magnitude measured at freq.
func (est Estimate) Get(freq float64) (float64, bool) {
	for i, f := range est.Freqs {
		if f == freq {
			return est.Mags[i], true
		}
	}
	return 0, false
}

// Estimate runs Amp and pairs each magnitude with its frequency.
func (e *Estimator) Estimate(samples []float64, freqs []float64) (Estimate, error) {
	mags, err := e.Amp(samples, freqs)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Freqs: append([]float64(nil), freqs...), Mags: mags}, nil
}

// Frame is one window of a Track time series.
type Frame struct {
	Start int
	Mags  []float64
}

// Track slides est over samples by hop and returns one frame per window that
// fits completely.
func Track(est *Estimator, samples []float64, freqs []float64, hop int) ([]Frame, error) {
	if hop <= 0 {
		return nil, fmt.Errorf("track: hop must be > 0, got %d", hop)
	}
	var frames []Frame
	for start := 0; start+est.Window() <= len(samples); start += hop {
		mags, err := est.Amp(samples[start:], freqs)
		if err != nil {
			return nil, err
		}
		frames = append(frames, Frame{Start: start, Mags: mags})
	}
	return frames, nil
}
