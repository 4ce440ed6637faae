package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/piano-norm/internal/audioio"
	"github.com/cwbudde/piano-norm/internal/playback"
	"github.com/cwbudde/piano-norm/mix"
	"github.com/cwbudde/piano-norm/pitch"
	"github.com/cwbudde/piano-norm/sample"
)

func main() {
	dir := flag.String("dir", filepath.Join("samples", "normed"), "Directory with normalized <note>.<dyn>.wav samples")
	dyn := flag.String("dyn", "mf", "Dynamic level to use when -velocity is not set")
	velocity := flag.Float64("velocity", -1, "Blend the -layers recordings at this velocity in [0,1] instead of using -dyn")
	layers := flag.String("layers", "pp,mf,ff", "Soft, medium and loud dynamic levels for -velocity")
	keys := flag.String("keys", "", "Comma-separated notes of a single chord, e.g. C4,E4,G4")
	letters := flag.String("letters", "CDEFGAB", "Note letters when -keys is empty")
	octaves := flag.String("octaves", "1234567", "Octave digits when -keys is empty")
	flats := flag.Bool("flats", true, "Include flats when -keys is empty")
	group := flag.Int("group", mix.DefaultGroupSize, "Keys per chord when -keys is empty")
	frames := flag.Int("frames", mix.DefaultChordFrames, "Frames per chord, 0 uses the longest sample")
	release := flag.Int("release", mix.DefaultRelease, "Release fade in frames")
	workers := flag.String("workers", "auto", "Parallel file loaders (number or 'auto')")
	outDir := flag.String("out", "", "Directory to write chord WAVs to (optional)")
	play := flag.Bool("play", false, "Play every chord")
	flag.Parse()

	if *outDir == "" && !*play {
		die("nothing to do: give -out and/or -play")
	}
	nWorkers, err := audioio.ParseWorkers(*workers)
	if err != nil {
		die("invalid workers value: %v", err)
	}

	var names []string
	var chords [][]string
	if *keys != "" {
		for _, k := range strings.Split(*keys, ",") {
			p, err := pitch.Parse(strings.TrimSpace(k))
			if err != nil {
				die("%v", err)
			}
			names = append(names, p.String())
		}
		chords = [][]string{names}
	} else {
		var octs []int
		for _, r := range *octaves {
			if r < '0' || r > '9' {
				die("invalid octave digit %q", r)
			}
			octs = append(octs, int(r-'0'))
		}
		names, err = pitch.Names(*letters, octs, *flats)
		if err != nil {
			die("%v", err)
		}
	}

	var notes *sample.Collection
	tag := *dyn
	if *velocity >= 0 {
		lv := strings.Split(*layers, ",")
		if len(lv) != 3 || *velocity > 1 {
			die("-velocity needs a value in [0,1] and three -layers")
		}
		notes, err = blendLayers(*dir, lv, names, *velocity, nWorkers, os.Stdout)
		tag = fmt.Sprintf("v%03d", int(*velocity*127+0.5))
	} else {
		notes, err = loadLayer(*dir, *dyn, names, nWorkers, os.Stdout)
	}
	if err != nil {
		die("%v", err)
	}
	if chords == nil {
		chords = mix.Groups(notes.Keys(), *group)
	}

	for _, ch := range chords {
		buf, err := mix.Chord(notes, ch, *frames)
		if err != nil {
			die("%v", err)
		}
		buf = mix.FadeOut(mix.Limit(buf, 1), *release)
		label := strings.Join(ch, "")
		if *outDir != "" {
			path := filepath.Join(*outDir, fmt.Sprintf("%s.%s.wav", label, tag))
			if err := audioio.Save(path, buf, sample.Rate, audioio.DefaultBitDepth); err != nil {
				die("failed to write %s: %v", path, err)
			}
			fmt.Printf("Save %s (%d ch, %d frames)\n", filepath.Base(path), len(buf.Channels()), buf.Len())
		}
		if *play {
			fmt.Println(label)
			if err := playback.Play(buf, sample.Rate); err != nil {
				die("playback: %v", err)
			}
		}
	}
}

// loadLayer loads <dir>/<key>.<dyn>.wav for every key. Missing files are
// reported and left out.
func loadLayer(dir, dyn string, keys []string, workers int, log io.Writer) (*sample.Collection, error) {
	paths := make([]string, len(keys))
	for i, k := range keys {
		paths[i] = filepath.Join(dir, fmt.Sprintf("%s.%s.wav", k, dyn))
	}
	c := sample.NewCollection()
	for i, res := range audioio.LoadAll(paths, workers, audioio.Load) {
		if res.Err != nil {
			return nil, res.Err
		}
		if !res.OK {
			fmt.Fprintf(log, "Skip %s (missing)\n", filepath.Base(res.Path))
			continue
		}
		if err := c.Add(keys[i], res.Buffer); err != nil {
			return nil, err
		}
	}
	if c.Len() == 0 {
		return nil, fmt.Errorf("no %s samples found in %s", dyn, dir)
	}
	return c, nil
}

// blendLayers crossfades the soft, medium and loud recordings of every key
// present in all three layers.
func blendLayers(dir string, layers []string, keys []string, velocity float64, workers int, log io.Writer) (*sample.Collection, error) {
	var cs [3]*sample.Collection
	for i, dyn := range layers {
		c, err := loadLayer(dir, strings.TrimSpace(dyn), keys, workers, log)
		if err != nil {
			return nil, err
		}
		cs[i] = c
	}
	out := sample.NewCollection()
	for _, k := range cs[1].Keys() {
		soft, okSoft := cs[0].Get(k)
		medium, _ := cs[1].Get(k)
		loud, okLoud := cs[2].Get(k)
		if !okSoft || !okLoud {
			fmt.Fprintf(log, "Skip %s (incomplete layers)\n", k)
			continue
		}
		b, err := mix.Blend(soft, medium, loud, velocity)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		if err := out.Add(k, b); err != nil {
			return nil, err
		}
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("no key has all of %s", strings.Join(layers, ","))
	}
	return out, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
