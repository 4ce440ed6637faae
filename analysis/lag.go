package analysis

import "math"

// Lag returns the shift of cand against ref, within ±maxLag, that maximizes
// their cross-correlation. A positive lag means ref starts later. On
// attack-aligned samples of the same note it should be close to zero.
func Lag(ref []float64, cand []float64, maxLag int) int {
	if len(ref) == 0 || len(cand) == 0 || maxLag < 0 {
		return 0
	}
	step := 1
	if len(ref) > 200000 || len(cand) > 200000 {
		step = 4
	}
	bestLag := 0
	best := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		s := dotAtLag(ref, cand, lag, step)
		if s > best {
			best = s
			bestLag = lag
		}
	}
	return bestLag
}

func dotAtLag(a []float64, b []float64, lag int, step int) float64 {
	var ai, bi int
	if lag >= 0 {
		ai = lag
	} else {
		bi = -lag
	}
	n := min(len(a)-ai, len(b)-bi)
	if n <= 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i += step {
		sum += a[ai+i] * b[bi+i]
	}
	return sum
}
