package dsp

import "math"

// Rectify returns |x| for every sample.
func Rectify(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Abs(v)
	}
	return out
}

// AddInto adds src into dst sample-wise over the shorter length.
func AddInto(dst []float64, src []float64) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] += src[i]
	}
}

// RunningMean computes the boxcar moving average of x over n samples.
// The result has len(x)-n+1 values; it is empty when n <= 0 or n > len(x).
//
// The mean is taken from differences of a prefix sum, so every output costs
// O(1) regardless of n.
func RunningMean(x []float64, n int) []float64 {
	if n <= 0 || n > len(x) {
		return []float64{}
	}
	cumsum := make([]float64, len(x)+1)
	for i, v := range x {
		cumsum[i+1] = cumsum[i] + v
	}
	out := make([]float64, len(x)-n+1)
	den := float64(n)
	for i := range out {
		out[i] = (cumsum[i+n] - cumsum[i]) / den
	}
	return out
}

// Max returns the largest value of x, or 0 for an empty slice.
func Max(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	m := x[0]
	for _, v := range x[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// FirstAbove returns the first index whose value is strictly greater than
// threshold, or -1 if there is none.
func FirstAbove(x []float64, threshold float64) int {
	for i, v := range x {
		if v > threshold {
			return i
		}
	}
	return -1
}

// ScaleInPlace multiplies every sample by g.
func ScaleInPlace(x []float64, g float64) {
	for i := range x {
		x[i] *= g
	}
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
