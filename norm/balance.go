package norm

import "github.com/cwbudde/piano-norm/sample"

// BalanceLR scales the right channel so its envelope peak matches the
// left one. The left channel is the reference and is never changed. A
// silent right channel is returned unchanged.
func BalanceLR(s sample.Stereo, window int) sample.Stereo {
	l := Amplitude(sample.NewMono(s.Left), window, Merged).Peak()
	r := Amplitude(sample.NewMono(s.Right), window, Merged).Peak()
	left := append([]float64(nil), s.Left...)
	if r <= 0 {
		return sample.Stereo{Left: left, Right: append([]float64(nil), s.Right...)}
	}
	rate := l / r
	right := make([]float64, len(s.Right))
	for i, v := range s.Right {
		right[i] = v * rate
	}
	return sample.Stereo{Left: left, Right: right}
}

// Balance applies BalanceLR to stereo buffers and returns mono buffers
// as they are.
func Balance(buf sample.Buffer, window int) sample.Buffer {
	switch b := buf.(type) {
	case sample.Stereo:
		return BalanceLR(b, window)
	case sample.Mono:
		return b
	}
	return buf
}
