package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cwbudde/piano-norm/analysis"
	"github.com/cwbudde/piano-norm/internal/audioio"
	"github.com/cwbudde/piano-norm/norm"
	"github.com/cwbudde/piano-norm/pitch"
	"github.com/cwbudde/piano-norm/sample"
)

type result struct {
	File      string              `json:"file"`
	Dominant  float64             `json:"dominant_hz"`
	Nominal   string              `json:"nominal"`
	NominalHz float64             `json:"nominal_hz"`
	Refined   float64             `json:"refined_hz"`
	Cents     float64             `json:"cents"`
	Evals     int                 `json:"evals"`
	Report    analysis.NoteReport `json:"report"`
}

func main() {
	file := flag.String("file", "", "Input WAV or FLAC path")
	note := flag.String("note", "", "Expected note name; detected from the spectrum when empty")
	skip := flag.Int("skip", 0, "Samples to skip before analysing, e.g. past the attack")
	fftSize := flag.Int("fft", 16384, "FFT size for dominant-frequency detection (power of two)")
	cents := flag.Float64("cents", 50, "Search range around the nominal pitch in cents")
	window := flag.Int("window", 16384, "Samples used for refinement, 0 uses all")
	variant := flag.String("variant", "ma", "Mayfly variant: "+strings.Join(analysis.Variants(), "|"))
	pop := flag.Int("pop", 10, "Mayfly population size")
	iters := flag.Int("iters", 40, "Mayfly iterations")
	seed := flag.Int64("seed", 1, "Random seed")
	resample := flag.Bool("resample", false, "Resample input to 44100 Hz instead of rejecting other rates")
	jsonOut := flag.Bool("json", false, "Print the result as JSON")
	flag.Parse()

	if *file == "" {
		die("-file is required")
	}
	buf, ok, err := audioio.LoadAt(*file, sample.Rate, *resample)
	if err != nil {
		die("failed to read %s: %v", *file, err)
	}
	if !ok {
		die("%s does not exist", *file)
	}
	if *skip < 0 || *skip >= buf.Len() {
		die("skip %d outside the %d frames of %s", *skip, buf.Len(), *file)
	}
	mono := buf.Mix()[*skip:]

	res := result{File: *file}
	if *fftSize > 0 && len(mono) >= *fftSize {
		res.Dominant, err = analysis.DominantFrequency(mono, sample.Rate, *fftSize)
		if err != nil {
			die("dominant frequency: %v", err)
		}
	}

	nominal, err := nominalPitch(*note, res.Dominant)
	if err != nil {
		die("%v", err)
	}
	res.Nominal = nominal.String()
	res.NominalHz = nominal.Frequency()

	opts := analysis.RefineOptions{
		Cents:      *cents,
		Window:     *window,
		Variant:    *variant,
		Population: *pop,
		Iterations: *iters,
		Seed:       *seed,
	}
	ref, err := analysis.RefineFrequency(mono, sample.Rate, res.NominalHz, opts)
	if err != nil {
		die("refine: %v", err)
	}
	res.Refined = ref.Frequency
	res.Cents = ref.Cents
	res.Evals = ref.Evals
	res.Report = analysis.Describe(buf, norm.DefaultConfig(), sample.Rate)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}
	fmt.Printf("File: %s (%d ch, %d frames)\n", *file, res.Report.Channels, res.Report.Frames)
	if res.Dominant > 0 {
		fmt.Printf("Dominant: %.3f Hz\n", res.Dominant)
	}
	fmt.Printf("Nominal: %s (%.3f Hz)\n", res.Nominal, res.NominalHz)
	fmt.Printf("Refined: %.3f Hz (%+.2f cents, %d evals)\n", res.Refined, res.Cents, res.Evals)
	fmt.Printf("Peak: %.2f dBFS  RMS: %.2f dBFS  Crest: %.2f\n", res.Report.PeakDB, res.Report.RMSDB, res.Report.Crest)
	fmt.Printf("Attack: %d  Decay: %.2f dB/s\n", res.Report.Attack, res.Report.DecayDBPerS)
}

var errNoDominant = errors.New("no dominant frequency: pass -note or a smaller -fft")

// nominalPitch prefers the explicit note and otherwise snaps the detected
// dominant frequency to the nearest key. A zero dominant means detection did
// not run.
func nominalPitch(note string, dominant float64) (pitch.Pitch, error) {
	if note != "" {
		p, err := pitch.Parse(note)
		if err != nil {
			return pitch.Pitch{}, fmt.Errorf("nominal pitch: %w", err)
		}
		return p, nil
	}
	if !(dominant > 0) {
		return pitch.Pitch{}, errNoDominant
	}
	p, _, err := pitch.Nearest(dominant)
	if err != nil {
		return pitch.Pitch{}, fmt.Errorf("nominal pitch: %w", err)
	}
	return p, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
