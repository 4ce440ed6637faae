package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/cwbudde/piano-norm/analysis"
	"github.com/cwbudde/piano-norm/internal/audioio"
	"github.com/cwbudde/piano-norm/norm"
	"github.com/cwbudde/piano-norm/pitch"
	"github.com/cwbudde/piano-norm/preset"
	"github.com/cwbudde/piano-norm/sample"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type job struct {
	preset  *preset.Preset
	letters string
	octaves []int
	flats   bool
	workers int
	envCSV  string
	save    bool
	// progress draws a load progress bar on log.
	progress bool
	log      io.Writer
}

type summary struct {
	Dynamics  string                 `json:"dynamics"`
	Loaded    []string               `json:"loaded"`
	Missing   []string               `json:"missing,omitempty"`
	Target    float64                `json:"target"`
	Threshold float64                `json:"threshold"`
	Silent    []string               `json:"silent,omitempty"`
	Missed    []string               `json:"missed,omitempty"`
	Notes     map[string]noteSummary `json:"notes"`
}

type noteSummary struct {
	Gain      float64             `json:"gain"`
	Attack    int                 `json:"attack"`
	Start     int                 `json:"start"`
	AttackLag int                 `json:"attack_lag"`
	Report    analysis.NoteReport `json:"report"`
	Output    string              `json:"output,omitempty"`
}

func inputPath(dir, dyn, name, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("Piano.%s.%s%s", dyn, name, ext))
}

func outputPath(dir, dyn, name string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.wav", name, dyn))
}

// loadNote tries the WAV recording first and falls back to FLAC.
func loadNote(wavPath string) (sample.Buffer, bool, error) {
	b, ok, err := audioio.Load(wavPath)
	if err != nil || ok {
		return b, ok, err
	}
	return audioio.Load(wavPath[:len(wavPath)-len(".wav")] + ".flac")
}

func (j *job) run(dyn string) (summary, *sample.Collection, error) {
	s := summary{Dynamics: dyn, Notes: map[string]noteSummary{}}

	names, err := pitch.Names(j.letters, j.octaves, j.flats)
	if err != nil {
		return s, nil, err
	}
	var keys, paths []string
	for _, name := range names {
		if j.preset.Skip[name] {
			fmt.Fprintf(j.log, "Skip %s (preset)\n", name)
			continue
		}
		keys = append(keys, name)
		paths = append(paths, inputPath(j.preset.SamplesDir, dyn, name, ".wav"))
	}

	load := loadNote
	var bars *mpb.Progress
	if j.progress {
		bars = mpb.New(mpb.WithOutput(j.log), mpb.WithWidth(64))
		bar := bars.AddBar(int64(len(paths)),
			mpb.PrependDecorators(
				decor.Name("Loading "+dyn+": "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
		load = func(path string) (sample.Buffer, bool, error) {
			defer bar.Increment()
			return loadNote(path)
		}
	}
	loaded := audioio.LoadAll(paths, j.workers, load)
	if bars != nil {
		bars.Wait()
	}

	raw := sample.NewCollection()
	for i, res := range loaded {
		if res.Err != nil {
			return s, nil, res.Err
		}
		if !res.OK {
			s.Missing = append(s.Missing, keys[i])
			continue
		}
		fmt.Fprintf(j.log, "Load %s (%d ch, %d frames)\n", filepath.Base(res.Path), len(res.Buffer.Channels()), res.Buffer.Len())
		if err := raw.Add(keys[i], res.Buffer); err != nil {
			return s, nil, err
		}
		s.Loaded = append(s.Loaded, keys[i])
	}
	if raw.Len() == 0 {
		return s, sample.NewCollection(), fmt.Errorf("no recordings found in %s", j.preset.SamplesDir)
	}

	r, err := j.preset.ForDynamics(dyn)
	if err != nil {
		return s, nil, err
	}
	res, err := r.Pipeline().Run(raw)
	if err != nil {
		return s, nil, err
	}
	s.Target = res.Gains.Target
	s.Threshold = res.Offsets.Threshold
	s.Silent = res.Gains.Silent
	s.Missed = res.Offsets.Missed
	for _, k := range s.Silent {
		fmt.Fprintf(j.log, "Warning: %s.%s is silent, left unscaled\n", k, dyn)
	}
	for _, k := range s.Missed {
		fmt.Fprintf(j.log, "Warning: %s.%s never reaches threshold %.4f\n", k, dyn, s.Threshold)
	}

	lags := attackLags(res.Normed, r.Config)
	for _, k := range res.Normed.Keys() {
		b, _ := res.Normed.Get(k)
		ns := noteSummary{
			Gain:      res.Gains.Multipliers[k],
			Attack:    res.Offsets.Attack[k],
			Start:     res.Offsets.Start[k],
			AttackLag: lags[k],
			Report:    analysis.Describe(b, r.Config, sample.Rate),
		}
		if j.save {
			ns.Output = outputPath(j.preset.OutputDir, dyn, k)
			if err := audioio.Save(ns.Output, b, sample.Rate, audioio.DefaultBitDepth); err != nil {
				return s, nil, err
			}
			fmt.Fprintf(j.log, "Save %s (%d ch, %d frames)\n", filepath.Base(ns.Output), len(b.Channels()), b.Len())
		}
		s.Notes[k] = ns
	}

	if j.envCSV != "" {
		if err := writeEnvelopes(filepath.Join(j.envCSV, dyn+".raw.csv"), res.Raw, r.Config.Window); err != nil {
			return s, nil, err
		}
		if err := writeEnvelopes(filepath.Join(j.envCSV, dyn+".normed.csv"), res.Normed, r.Config.Window); err != nil {
			return s, nil, err
		}
	}
	return s, res.Normed, nil
}

// attackLags cross-correlates the envelope onsets around the aligned attack
// of every sample against the first one. Aligned samples give zero.
func attackLags(c *sample.Collection, cfg norm.Config) map[string]int {
	out := make(map[string]int, c.Len())
	span := 2*cfg.MarginBefore + cfg.Window
	var ref []float64
	for _, k := range c.Keys() {
		b, _ := c.Get(k)
		on := onset(norm.Amplitude(b, cfg.Window, norm.Merged).Values(), span)
		if ref == nil {
			ref = on
		}
		out[k] = analysis.Lag(ref, on, cfg.MarginBefore)
	}
	return out
}

func onset(env []float64, span int) []float64 {
	n := min(len(env), span)
	if n < 2 {
		return []float64{}
	}
	out := make([]float64, n-1)
	for i := range out {
		out[i] = max(0, env[i+1]-env[i])
	}
	return out
}

func writeEnvelopes(path string, c *sample.Collection, window int) error {
	names := c.Keys()
	series := make([][]float64, len(names))
	for i, k := range names {
		b, _ := c.Get(k)
		series[i] = norm.Amplitude(b, window, norm.Merged).Values()
	}
	return audioio.WriteEnvelopeCSV(path, names, series)
}
