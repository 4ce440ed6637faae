package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/piano-norm/analysis"
	"github.com/cwbudde/piano-norm/internal/audioio"
	"github.com/cwbudde/piano-norm/pitch"
	"github.com/cwbudde/piano-norm/sample"
)

type track struct {
	File       string      `json:"file"`
	SampleRate int         `json:"sample_rate"`
	Window     int         `json:"window"`
	Hop        int         `json:"hop"`
	Labels     []string    `json:"labels"`
	Freqs      []float64   `json:"freqs"`
	Times      []float64   `json:"times"`
	Mags       [][]float64 `json:"mags"`
}

func main() {
	file := flag.String("file", "", "Input WAV or FLAC path")
	freqs := flag.String("freqs", "", "Comma-separated frequencies in Hz")
	notes := flag.String("notes", "", "Comma-separated note names, e.g. C4,Eb4,G4")
	window := flag.Int("window", 4096, "Goertzel window in samples")
	hop := flag.Int("hop", 1024, "Hop between windows in samples")
	resample := flag.Bool("resample", false, "Resample input to 44100 Hz instead of rejecting other rates")
	jsonOut := flag.Bool("json", false, "Print the time series as JSON")
	flag.Parse()

	if *file == "" {
		die("-file is required")
	}
	labels, fs, err := targets(*freqs, *notes)
	if err != nil {
		die("%v", err)
	}
	if len(fs) == 0 {
		die("give -freqs or -notes")
	}

	buf, ok, err := audioio.LoadAt(*file, sample.Rate, *resample)
	if err != nil {
		die("failed to read %s: %v", *file, err)
	}
	if !ok {
		die("%s does not exist", *file)
	}

	est, err := analysis.NewEstimator(*window, sample.Rate)
	if err != nil {
		die("%v", err)
	}
	frames, err := analysis.Track(est, buf.Mix(), fs, *hop)
	if err != nil {
		die("%v", err)
	}

	out := track{
		File:       *file,
		SampleRate: sample.Rate,
		Window:     *window,
		Hop:        *hop,
		Labels:     labels,
		Freqs:      fs,
	}
	for _, fr := range frames {
		out.Times = append(out.Times, float64(fr.Start)/sample.Rate)
		out.Mags = append(out.Mags, fr.Mags)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}
	fmt.Printf("time_s,%s\n", strings.Join(labels, ","))
	for i, t := range out.Times {
		cols := make([]string, len(out.Mags[i]))
		for j, m := range out.Mags[i] {
			cols[j] = strconv.FormatFloat(m, 'g', 6, 64)
		}
		fmt.Printf("%.4f,%s\n", t, strings.Join(cols, ","))
	}
}

// targets resolves -freqs and -notes into one list of labelled frequencies.
func targets(freqs, notes string) ([]string, []float64, error) {
	var labels []string
	var out []float64
	for _, f := range splitList(freqs) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid frequency %q: %w", f, err)
		}
		labels = append(labels, f)
		out = append(out, v)
	}
	for _, n := range splitList(notes) {
		p, err := pitch.Parse(n)
		if err != nil {
			return nil, nil, err
		}
		labels = append(labels, p.String())
		out = append(out, p.Frequency())
	}
	return labels, out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
