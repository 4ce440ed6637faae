package analysis

import (
	"fmt"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-dsp/dsp/window"
)

// DominantFrequency returns the frequency of the strongest bin above DC in a
// Hann-windowed FFT of the first fftSize samples, refined by parabolic
// interpolation over the neighbouring bins.
func DominantFrequency(samples []float64, sampleRate float64, fftSize int) (float64, error) {
	if fftSize < 4 || fftSize&(fftSize-1) != 0 {
		return 0, fmt.Errorf("dominant frequency: fft size %d is not a power of two >= 4", fftSize)
	}
	if len(samples) < fftSize {
		return 0, fmt.Errorf("dominant frequency: %w: have %d, need %d", ErrShortWindow, len(samples), fftSize)
	}
	if !(sampleRate > 0) {
		return 0, fmt.Errorf("dominant frequency: sample rate must be > 0, got %v", sampleRate)
	}

	mags, err := magnitudeSpectrum(samples[:fftSize])
	if err != nil {
		return 0, err
	}

	peak := 1
	for k := 2; k < len(mags)-1; k++ {
		if mags[k] > mags[peak] {
			peak = k
		}
	}
	binHz := sampleRate / float64(fftSize)
	return (float64(peak) + parabolicOffset(mags, peak)) * binHz, nil
}

// magnitudeSpectrum returns |X[k]| for k in [0, n/2].
func magnitudeSpectrum(x []float64) ([]float64, error) {
	n := len(x)
	coeffs := window.Generate(window.TypeHann, n)
	in := make([]complex128, n)
	for i, v := range x {
		w := 1.0
		if len(coeffs) == n {
			w = coeffs[i]
		}
		in[i] = complex(v*w, 0)
	}

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}
	out := make([]complex128, n)
	if err := plan.Forward(out, in); err != nil {
		return nil, fmt.Errorf("fft: %w", err)
	}

	mags := make([]float64, n/2+1)
	for k := range mags {
		mags[k] = cmplx.Abs(out[k])
	}
	return mags, nil
}

// parabolicOffset fits a parabola through bins k-1, k, k+1 and returns the
// vertex position relative to k, in (-0.5, 0.5).
func parabolicOffset(mags []float64, k int) float64 {
	if k <= 0 || k >= len(mags)-1 {
		return 0
	}
	a, b, c := mags[k-1], mags[k], mags[k+1]
	den := a - 2*b + c
	if den == 0 {
		return 0
	}
	p := 0.5 * (a - c) / den
	if p > 0.5 {
		p = 0.5
	} else if p < -0.5 {
		p = -0.5
	}
	return p
}
