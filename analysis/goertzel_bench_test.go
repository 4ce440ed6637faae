package analysis

import "testing"

func BenchmarkAmpFewFrequencies(b *testing.B) {
	est, _ := NewEstimator(4096, sr)
	x := randomSignal(4096, 1)
	freqs := []float64{261.63, 523.25, 784.88}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = est.Amp(x, freqs)
	}
}

func BenchmarkDominantFrequency(b *testing.B) {
	x := randomSignal(4096, 1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = DominantFrequency(x, sr, 4096)
	}
}
