package analysis

import (
	"encoding/json"
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/cwbudde/piano-norm/norm"
	"github.com/cwbudde/piano-norm/sample"
)

const sr = 44100.0

func sine(freq, amp float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/sr)
	}
	return out
}

func makeDecaySine(freq float64, durationSec float64, decaySec float64) []float64 {
	n := int(sr * durationSec)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sr
		out[i] = math.Exp(-t/decaySec) * math.Sin(2*math.Pi*freq*t)
	}
	return out
}

func randomSignal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}

func directDFTPower(x []float64, freq float64) float64 {
	var acc complex128
	for n, v := range x {
		acc += complex(v, 0) * cmplx.Exp(complex(0, -2*math.Pi*freq*float64(n)/sr))
	}
	re, im := real(acc), imag(acc)
	return re*re + im*im
}

func TestNewEstimatorValidates(t *testing.T) {
	if _, err := NewEstimator(0, sr); err == nil {
		t.Fatalf("expected error for zero window")
	}
	if _, err := NewEstimator(512, 0); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
}

func TestAmpSelectsTargetFrequency(t *testing.T) {
	const n = 4410
	est, err := NewEstimator(n, sr)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	if k := est.Bin(1000); math.Abs(k-100) > 1e-9 {
		t.Fatalf("Bin(1000) = %f, want 100", k)
	}
	mags, err := est.Amp(sine(1000, 0.8, n), []float64{1000, 1200})
	if err != nil {
		t.Fatalf("Amp: %v", err)
	}
	if mags[0] <= 10*mags[1] {
		t.Fatalf("on-target %g not well above off-target %g", mags[0], mags[1])
	}
}

func TestAmpMatchesDirectDFT(t *testing.T) {
	const n = 1024
	x := randomSignal(n, 5)
	freqs := []float64{0, 440.7, 1234.5, 9999, sr / 2}
	est, err := NewEstimator(n, sr)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	mags, err := est.Amp(x, freqs)
	if err != nil {
		t.Fatalf("Amp: %v", err)
	}
	if len(mags) != len(freqs) {
		t.Fatalf("got %d magnitudes for %d frequencies", len(mags), len(freqs))
	}
	for i, f := range freqs {
		want := directDFTPower(x, f)
		if math.Abs(mags[i]-want) > 1e-6*math.Max(1, want) {
			t.Errorf("%g Hz: got %g want %g", f, mags[i], want)
		}
		if mags[i] < -1e-9 {
			t.Errorf("%g Hz: negative magnitude %g", f, mags[i])
		}
	}
}

func TestAmpReadsOnlyTheWindow(t *testing.T) {
	est, _ := NewEstimator(256, sr)
	x := randomSignal(256, 9)
	long := append(append([]float64(nil), x...), randomSignal(1000, 10)...)
	a, err := est.Amp(x, []float64{3000})
	if err != nil {
		t.Fatalf("Amp: %v", err)
	}
	b, err := est.Amp(long, []float64{3000})
	if err != nil {
		t.Fatalf("Amp: %v", err)
	}
	if a[0] != b[0] {
		t.Fatalf("trailing samples changed the result: %g vs %g", a[0], b[0])
	}
}

func TestAmpErrors(t *testing.T) {
	est, _ := NewEstimator(512, sr)
	if _, err := est.Amp(make([]float64, 100), []float64{440}); !errors.Is(err, ErrShortWindow) {
		t.Fatalf("expected ErrShortWindow, got %v", err)
	}
	for _, f := range []float64{sr, sr/2 + 1, -1, math.NaN(), math.Inf(1)} {
		if _, err := est.Amp(make([]float64, 512), []float64{440, f}); !errors.Is(err, ErrFrequency) {
			t.Fatalf("%v Hz: expected ErrFrequency, got %v", f, err)
		}
	}
	for _, req := range [][]float64{nil, {}} {
		mags, err := est.Amp(make([]float64, 512), req)
		if err != nil || mags == nil || len(mags) != 0 {
			t.Fatalf("empty request: %v %v", mags, err)
		}
	}
}

func TestAmpBandEdges(t *testing.T) {
	const n = 512
	est, _ := NewEstimator(n, sr)
	dc := make([]float64, n)
	alt := make([]float64, n)
	for i := range dc {
		dc[i] = 0.25
		alt[i] = 0.25
		if i%2 == 1 {
			alt[i] = -0.25
		}
	}
	want := math.Pow(0.25*n, 2)

	mags, err := est.Amp(dc, []float64{0, sr / 2, 1000})
	if err != nil {
		t.Fatalf("Amp: %v", err)
	}
	if math.Abs(mags[0]-want) > 1e-9*want || mags[1] > 1e-9 {
		t.Fatalf("constant input: dc=%g nyquist=%g, want %g and 0", mags[0], mags[1], want)
	}
	mags, err = est.Amp(alt, []float64{sr / 2, 0})
	if err != nil {
		t.Fatalf("Amp: %v", err)
	}
	if math.Abs(mags[0]-want) > 1e-9*want || mags[1] > 1e-9 {
		t.Fatalf("alternating input: nyquist=%g dc=%g, want %g and 0", mags[0], mags[1], want)
	}
}

func TestEstimateKeepsRequestOrder(t *testing.T) {
	est, _ := NewEstimator(2048, sr)
	x := sine(880, 0.5, 2048)
	freqs := []float64{1760, 880, 440}
	e, err := est.Estimate(x, freqs)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	m880, ok := e.Get(880)
	if !ok {
		t.Fatalf("880 missing from estimate")
	}
	if m880 != e.Mags[1] {
		t.Fatalf("Get(880) = %g, Mags[1] = %g", m880, e.Mags[1])
	}
	if _, ok := e.Get(100); ok {
		t.Fatalf("Get on unrequested frequency should fail")
	}
}

func TestTrack(t *testing.T) {
	est, _ := NewEstimator(1000, sr)
	frames, err := Track(est, randomSignal(10000, 3), []float64{440, 880}, 500)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if len(frames) != 19 {
		t.Fatalf("got %d frames, want 19", len(frames))
	}
	if frames[18].Start != 9000 || len(frames[18].Mags) != 2 {
		t.Fatalf("last frame = %+v", frames[18])
	}
	if _, err := Track(est, nil, []float64{440}, 0); err == nil {
		t.Fatalf("expected error for zero hop")
	}
}

func TestDominantFrequency(t *testing.T) {
	x := makeDecaySine(440, 0.5, 2.0)
	f, err := DominantFrequency(x, sr, 8192)
	if err != nil {
		t.Fatalf("DominantFrequency: %v", err)
	}
	if math.Abs(f-440) > 1 {
		t.Fatalf("got %f Hz, want 440", f)
	}
	if _, err := DominantFrequency(x, sr, 1000); err == nil {
		t.Fatalf("expected error for non power-of-two size")
	}
	if _, err := DominantFrequency(x[:100], sr, 8192); !errors.Is(err, ErrShortWindow) {
		t.Fatalf("expected ErrShortWindow, got %v", err)
	}
}

func TestRefineFrequencyFindsDetunedTone(t *testing.T) {
	const nominal = 440.0
	target := nominal * math.Exp2(12.0/1200)
	x := sine(target, 0.7, 20000)

	got, err := RefineFrequency(x, sr, nominal, DefaultRefineOptions())
	if err != nil {
		t.Fatalf("RefineFrequency: %v", err)
	}
	cents := 1200 * math.Log2(got.Frequency/target)
	if math.Abs(cents) > 3 {
		t.Fatalf("refined %f Hz is %.2f cents from %f", got.Frequency, cents, target)
	}
	if got.Evals <= 21 {
		t.Fatalf("optimizer did not run: %d evals", got.Evals)
	}
}

func TestRefineFrequencyRejectsBadVariant(t *testing.T) {
	opts := DefaultRefineOptions()
	opts.Variant = "nope"
	if _, err := RefineFrequency(sine(440, 1, 4096), sr, 440, opts); err == nil {
		t.Fatalf("expected error for unknown variant")
	}
}

func TestRefineFrequencyEveryVariant(t *testing.T) {
	const nominal = 440.0
	target := nominal * math.Exp2(12.0/1200)
	x := sine(target, 0.7, 20000)

	names := Variants()
	if !slices.IsSorted(names) || !slices.Contains(names, "ma") {
		t.Fatalf("variants = %v", names)
	}
	for _, v := range names {
		opts := DefaultRefineOptions()
		opts.Variant = strings.ToUpper(v)
		opts.Population = 6
		opts.Iterations = 5
		got, err := RefineFrequency(x, sr, nominal, opts)
		if err != nil {
			t.Fatalf("%s: %v", v, err)
		}
		if got.Evals <= 21 {
			t.Fatalf("%s: swarm did not run: %d evals", v, got.Evals)
		}
		// The grid alone lands 2 cents off; the swarm may only improve on it.
		if math.Abs(got.Cents-12) > 2.05 || got.Cents < -opts.Cents || got.Cents > opts.Cents {
			t.Fatalf("%s: %.3f cents, want about 12", v, got.Cents)
		}
	}
}

func TestDescribe(t *testing.T) {
	x := append(make([]float64, 1000), makeDecaySine(440, 0.5, 2.0)...)
	r := Describe(sample.NewMono(x), norm.DefaultConfig(), int(sr))
	if r.Frames != len(x) || r.Channels != 1 {
		t.Fatalf("frames=%d channels=%d", r.Frames, r.Channels)
	}
	if r.Peak < 0.95 || r.Peak > 1.0 {
		t.Fatalf("peak = %f", r.Peak)
	}
	if math.Abs(r.PeakDB-20*math.Log10(r.Peak)) > 1e-9 {
		t.Fatalf("peak dB = %f", r.PeakDB)
	}
	if r.Attack < 500 || r.Attack > 1000 {
		t.Fatalf("attack = %d", r.Attack)
	}
	want := -20 / (0.5 * math.Ln10)
	if math.Abs(r.DecayDBPerS-want) > 1.0 {
		t.Fatalf("decay = %f dB/s, want %f", r.DecayDBPerS, want)
	}
}

func TestDescribeZeroThresholdFindsFirstSound(t *testing.T) {
	x := append(make([]float64, 1000), makeDecaySine(440, 0.5, 2.0)...)
	buf := sample.NewMono(x)
	cfg := norm.DefaultConfig()
	zero := Describe(buf, cfg.WithThreshold(0), int(sr))
	// The tone opens with sin(0), so sample 1001 is the first non-zero one.
	if want := 1001 - cfg.Window + 1; zero.Attack != want {
		t.Fatalf("attack = %d, want %d", zero.Attack, want)
	}
	if guessed := Describe(buf, cfg, int(sr)); guessed.Attack <= zero.Attack {
		t.Fatalf("guessed attack %d not after %d", guessed.Attack, zero.Attack)
	}
}

func TestDescribeShortSampleHasNoDecay(t *testing.T) {
	r := Describe(sample.NewMono([]float64{0.1, -0.2, 0.1}), norm.DefaultConfig(), int(sr))
	if !math.IsNaN(r.DecayDBPerS) {
		t.Fatalf("decay = %f, want NaN", r.DecayDBPerS)
	}
	if r.Attack != -1 {
		t.Fatalf("attack = %d, want -1", r.Attack)
	}
}

func TestDecayRateStopsSixtyDBDown(t *testing.T) {
	// Rises to 0 dB, then falls 5 dB per 10 ms frame.
	levels := []float64{-10, 0}
	for db := -5.0; db >= -80; db -= 5 {
		levels = append(levels, db)
	}
	rate, ok := decayRate(levels, 0.01)
	if !ok {
		t.Fatalf("no decay fitted")
	}
	if math.Abs(rate+500) > 1e-9 {
		t.Fatalf("rate = %f dB/s, want -500", rate)
	}
	// A late swell past the 60 dB range does not bend the fit.
	swell := append(append([]float64{}, levels...), -20, 0)
	if rate, _ := decayRate(swell, 0.01); math.Abs(rate+500) > 1e-9 {
		t.Fatalf("rate with swell = %f", rate)
	}
	if _, ok := decayRate([]float64{0, -5, -10}, 0.01); ok {
		t.Fatalf("three frames should be too short to fit")
	}
	if _, ok := decayRate(levels, 0); ok {
		t.Fatalf("zero hop should not fit")
	}
}

func TestNoteReportJSONOfSilence(t *testing.T) {
	r := Describe(sample.NewMono(make([]float64, 3)), norm.DefaultConfig(), int(sr))
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["decay_db_per_s"] != nil {
		t.Fatalf("decay = %v, want null", got["decay_db_per_s"])
	}
	if db, ok := got["peak_db"].(float64); !ok || db > -200 {
		t.Fatalf("peak_db = %v", got["peak_db"])
	}
}

func TestLagFindsPositiveShift(t *testing.T) {
	const shift = 237
	ref := randomSignal(8192, 7)
	cand := make([]float64, len(ref))
	copy(cand, ref[shift:])
	if got := Lag(ref, cand, 600); got != shift {
		t.Fatalf("Lag() = %d, want %d", got, shift)
	}
}

func TestLagFindsNegativeShift(t *testing.T) {
	const shift = -191
	ref := randomSignal(8192, 11)
	cand := make([]float64, len(ref))
	copy(cand[-shift:], ref)
	if got := Lag(ref, cand, 600); got != shift {
		t.Fatalf("Lag() = %d, want %d", got, shift)
	}
}
