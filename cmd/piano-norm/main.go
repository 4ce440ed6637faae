package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cwbudde/piano-norm/internal/audioio"
	"github.com/cwbudde/piano-norm/internal/playback"
	"github.com/cwbudde/piano-norm/mix"
	"github.com/cwbudde/piano-norm/preset"
	"github.com/cwbudde/piano-norm/sample"
)

func main() {
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	samplesDir := flag.String("samples", "", "Directory with Piano.<dyn>.<note>.wav recordings (overrides preset)")
	outDir := flag.String("out", "", "Output directory for normalized samples (overrides preset)")
	dyns := flag.String("dyn", "pp,mf,ff", "Comma-separated dynamic levels to process")
	letters := flag.String("letters", "CDEFGAB", "Note letters to load")
	octaves := flag.String("octaves", "1234567", "Octave digits to load")
	flats := flag.Bool("flats", true, "Also load the flat of every letter that has one")
	frames := flag.Int("frames", -1, "Output length in frames, 0 keeps full length (overrides preset)")
	anchor := flag.Float64("anchor", -1, "Envelope peak to normalize to, 0 uses the loudest sample (overrides preset)")
	workers := flag.String("workers", "auto", "Parallel file loaders (number or 'auto')")
	envCSV := flag.String("envelope-csv", "", "Directory to write raw and normalized envelope CSVs to (optional)")
	play := flag.Bool("play", false, "Play the normalized notes as chords after each dynamic level")
	dryRun := flag.Bool("dry-run", false, "Normalize but do not write output files")
	jsonOut := flag.Bool("json", false, "Print a JSON summary")
	progress := flag.Bool("progress", false, "Show a progress bar while loading")
	flag.Parse()

	p := preset.Default()
	if *presetPath != "" {
		var err error
		p, err = preset.LoadJSON(*presetPath)
		if err != nil {
			die("Error loading preset %q: %v", *presetPath, err)
		}
	}
	if *samplesDir != "" {
		p.SamplesDir = *samplesDir
	}
	if *outDir != "" {
		p.OutputDir = *outDir
	}
	if *frames >= 0 {
		p.Frames = *frames
	}
	switch {
	case *anchor == 0:
		p.Config.Anchor = nil
	case *anchor > 0:
		p.Config = p.Config.WithAnchor(*anchor)
	}

	nWorkers, err := audioio.ParseWorkers(*workers)
	if err != nil {
		die("invalid workers value: %v", err)
	}
	octs, err := parseOctaves(*octaves)
	if err != nil {
		die("invalid octaves: %v", err)
	}

	job := job{
		preset:   p,
		letters:  *letters,
		octaves:  octs,
		flats:    *flats,
		workers:  nWorkers,
		envCSV:   *envCSV,
		save:     !*dryRun,
		progress: *progress,
		log:      os.Stdout,
	}
	if *jsonOut {
		job.log = os.Stderr
	}

	var summaries []summary
	for _, dyn := range strings.Split(*dyns, ",") {
		dyn = strings.TrimSpace(dyn)
		if dyn == "" {
			continue
		}
		s, normed, err := job.run(dyn)
		if err != nil {
			die("%s: %v", dyn, err)
		}
		summaries = append(summaries, s)
		if *play {
			playChords(normed)
		}
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summaries); err != nil {
			die("json encode failed: %v", err)
		}
	}
}

func playChords(c *sample.Collection) {
	for _, keys := range mix.Groups(c.Keys(), mix.DefaultGroupSize) {
		chord, err := mix.Chord(c, keys, mix.DefaultChordFrames)
		if err != nil {
			die("chord: %v", err)
		}
		fmt.Println(strings.Join(keys, ""))
		chord = mix.FadeOut(mix.Limit(chord, 1), mix.DefaultRelease)
		if err := playback.Play(chord, sample.Rate); err != nil {
			die("playback: %v", err)
		}
	}
}

func parseOctaves(s string) ([]int, error) {
	var out []int
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("%q is not an octave digit", r)
		}
		out = append(out, int(r-'0'))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no octaves given")
	}
	return out, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
