// Package preset loads normalization run settings from JSON.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/piano-norm/norm"
	"github.com/cwbudde/piano-norm/pitch"
)

// Settings is the partial pipeline configuration shared by the top level of
// a preset file and its per-dynamics entries. Nil fields keep the value
// underneath.
type Settings struct {
	Window *int `json:"window"`
	// Anchor 0 selects the loudest peak of the collection.
	Anchor         *float64 `json:"anchor"`
	Threshold      *float64 `json:"threshold"`
	ThresholdRatio *float64 `json:"threshold_ratio"`
	MarginBefore   *int     `json:"margin_before"`
	Frames         *int     `json:"frames"`
	Headroom       *int     `json:"headroom"`
	Balance        *bool    `json:"balance"`
}

// File is the JSON schema for normalization presets.
type File struct {
	Settings
	SamplesDir string                 `json:"samples_dir"`
	OutputDir  string                 `json:"output_dir"`
	Dynamics   map[string]Settings    `json:"dynamics"`
	PerNote    map[string]NoteSetting `json:"per_note"`
}

// NoteSetting is a per-key entry in a preset file.
type NoteSetting struct {
	// Skip leaves the key out of every run, for recordings known to be bad.
	Skip *bool `json:"skip"`
}

// Run holds the resolved settings of one pipeline run.
type Run struct {
	Config   norm.Config
	Frames   int
	Headroom int
	Balance  bool
}

// Pipeline returns a norm.Pipeline configured from r.
func (r Run) Pipeline() *norm.Pipeline {
	p := norm.NewPipeline(r.Config, r.Frames)
	p.Headroom = r.Headroom
	p.Balance = r.Balance
	return p
}

// Preset is a loaded preset file on top of the built-in defaults.
type Preset struct {
	Run
	SamplesDir string
	OutputDir  string
	Dynamics   map[string]Settings
	Skip       map[string]bool
}

// Default returns the settings used to prepare the sample library: anchor
// 0.5, 300000 output frames, and a fixed 0.2 attack threshold for pp, whose
// recordings are too noisy for a guessed one.
func Default() *Preset {
	cfg := norm.DefaultConfig().WithAnchor(0.5)
	ppThreshold := 0.2
	return &Preset{
		Run: Run{
			Config:   cfg,
			Frames:   300000,
			Headroom: norm.DefaultHeadroom,
			Balance:  true,
		},
		SamplesDir: "samples",
		OutputDir:  filepath.Join("samples", "normed"),
		Dynamics:   map[string]Settings{"pp": {Threshold: &ppThreshold}},
		Skip:       map[string]bool{},
	}
}

// LoadJSON loads a preset JSON file and applies it on top of Default.
// Relative directories are resolved against the preset file's directory.
func LoadJSON(path string) (*Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	p := Default()
	if err := ApplyFile(p, &f); err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	if f.SamplesDir != "" && !filepath.IsAbs(p.SamplesDir) {
		p.SamplesDir = filepath.Clean(filepath.Join(base, p.SamplesDir))
	}
	if f.OutputDir != "" && !filepath.IsAbs(p.OutputDir) {
		p.OutputDir = filepath.Clean(filepath.Join(base, p.OutputDir))
	}
	return p, nil
}

// ApplyFile applies a parsed preset file onto an existing preset.
func ApplyFile(dst *Preset, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination preset")
	}
	if f == nil {
		return nil
	}

	if err := applySettings(&dst.Run, &f.Settings); err != nil {
		return err
	}
	if s := strings.TrimSpace(f.SamplesDir); s != "" {
		dst.SamplesDir = s
	}
	if s := strings.TrimSpace(f.OutputDir); s != "" {
		dst.OutputDir = s
	}

	if dst.Dynamics == nil {
		dst.Dynamics = make(map[string]Settings)
	}
	for _, dyn := range sortedKeys(f.Dynamics) {
		if strings.TrimSpace(dyn) == "" {
			return fmt.Errorf("empty dynamics key")
		}
		override := f.Dynamics[dyn]
		// validate against the current top level before storing
		probe := dst.Run
		if err := applySettings(&probe, &override); err != nil {
			return fmt.Errorf("dynamics[%s]: %w", dyn, err)
		}
		dst.Dynamics[dyn] = merge(dst.Dynamics[dyn], override)
	}

	if dst.Skip == nil {
		dst.Skip = make(map[string]bool)
	}
	for _, k := range sortedKeys(f.PerNote) {
		if _, err := pitch.Parse(k); err != nil {
			return fmt.Errorf("invalid per_note key %q: %w", k, err)
		}
		if s := f.PerNote[k].Skip; s != nil {
			dst.Skip[k] = *s
		}
	}
	return nil
}

// ForDynamics returns the run settings for one dynamic level: the top-level
// settings with that level's overrides applied.
func (p *Preset) ForDynamics(dyn string) (Run, error) {
	r := p.Run
	if s, ok := p.Dynamics[dyn]; ok {
		if err := applySettings(&r, &s); err != nil {
			return Run{}, fmt.Errorf("dynamics[%s]: %w", dyn, err)
		}
	}
	return r, nil
}

func applySettings(dst *Run, s *Settings) error {
	if s.Window != nil {
		if *s.Window <= 0 {
			return fmt.Errorf("window must be > 0")
		}
		dst.Config.Window = *s.Window
	}
	if s.Anchor != nil {
		switch a := *s.Anchor; {
		case a < 0:
			return fmt.Errorf("anchor must be >= 0")
		case a == 0:
			dst.Config.Anchor = nil
		default:
			dst.Config = dst.Config.WithAnchor(a)
		}
	}
	if s.Threshold != nil {
		if *s.Threshold < 0 {
			return fmt.Errorf("threshold must be >= 0")
		}
		dst.Config = dst.Config.WithThreshold(*s.Threshold)
	}
	if s.ThresholdRatio != nil {
		if *s.ThresholdRatio <= 0 || *s.ThresholdRatio > 1 {
			return fmt.Errorf("threshold_ratio must be in (0,1]")
		}
		dst.Config.ThresholdRatio = *s.ThresholdRatio
	}
	if s.MarginBefore != nil {
		if *s.MarginBefore < 0 {
			return fmt.Errorf("margin_before must be >= 0")
		}
		dst.Config.MarginBefore = *s.MarginBefore
	}
	if s.Frames != nil {
		if *s.Frames < 0 {
			return fmt.Errorf("frames must be >= 0")
		}
		dst.Frames = *s.Frames
	}
	if s.Headroom != nil {
		if *s.Headroom < 0 {
			return fmt.Errorf("headroom must be >= 0")
		}
		dst.Headroom = *s.Headroom
	}
	if s.Balance != nil {
		dst.Balance = *s.Balance
	}
	return nil
}

// merge returns base with every non-nil field of over replacing it.
func merge(base, over Settings) Settings {
	if over.Window != nil {
		base.Window = over.Window
	}
	if over.Anchor != nil {
		base.Anchor = over.Anchor
	}
	if over.Threshold != nil {
		base.Threshold = over.Threshold
	}
	if over.ThresholdRatio != nil {
		base.ThresholdRatio = over.ThresholdRatio
	}
	if over.MarginBefore != nil {
		base.MarginBefore = over.MarginBefore
	}
	if over.Frames != nil {
		base.Frames = over.Frames
	}
	if over.Headroom != nil {
		base.Headroom = over.Headroom
	}
	if over.Balance != nil {
		base.Balance = over.Balance
	}
	return base
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
