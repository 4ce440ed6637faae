package preset

import (
	"os"
	"path/filepath"
	"testing"
)

func writePreset(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "preset.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	return path
}

func equal(p *float64, want float64) bool {
	return p != nil && *p == want
}

func TestDefaultHasPPThreshold(t *testing.T) {
	p := Default()
	mf, err := p.ForDynamics("mf")
	if err != nil {
		t.Fatalf("ForDynamics(mf): %v", err)
	}
	if mf.Config.Threshold != nil || !equal(mf.Config.Anchor, 0.5) || mf.Frames != 300000 {
		t.Fatalf("mf run mismatch: %+v", mf)
	}
	pp, err := p.ForDynamics("pp")
	if err != nil {
		t.Fatalf("ForDynamics(pp): %v", err)
	}
	if !equal(pp.Config.Threshold, 0.2) {
		t.Fatalf("pp threshold = %v, want 0.2", pp.Config.Threshold)
	}
}

func TestLoadJSONAppliesGlobalAndPerDynamics(t *testing.T) {
	path := writePreset(t, `{
  "window": 220,
  "anchor": 0.4,
  "margin_before": 300,
  "frames": 100000,
  "balance": false,
  "samples_dir": "raw",
  "output_dir": "/tmp/normed",
  "dynamics": {
    "ff": {"threshold": 0.15, "frames": 200000}
  },
  "per_note": {
    "A3": {"skip": true}
  }
}`)

	p, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if p.Config.Window != 220 || !equal(p.Config.Anchor, 0.4) || p.Config.MarginBefore != 300 {
		t.Fatalf("config mismatch: %+v", p.Config)
	}
	if p.Frames != 100000 || p.Balance {
		t.Fatalf("run mismatch: %+v", p.Run)
	}
	if want := filepath.Join(filepath.Dir(path), "raw"); p.SamplesDir != want {
		t.Fatalf("samples dir = %q, want %q", p.SamplesDir, want)
	}
	if p.OutputDir != "/tmp/normed" {
		t.Fatalf("output dir = %q", p.OutputDir)
	}
	if !p.Skip["A3"] {
		t.Fatalf("A3 not skipped: %v", p.Skip)
	}

	ff, err := p.ForDynamics("ff")
	if err != nil {
		t.Fatalf("ForDynamics: %v", err)
	}
	if !equal(ff.Config.Threshold, 0.15) || ff.Frames != 200000 || ff.Config.Window != 220 {
		t.Fatalf("ff run mismatch: %+v", ff)
	}
	pp, _ := p.ForDynamics("pp")
	if !equal(pp.Config.Threshold, 0.2) || pp.Frames != 100000 {
		t.Fatalf("pp run mismatch: %+v", pp)
	}

	pl := ff.Pipeline()
	if pl.Frames != 200000 || pl.Balance || !equal(pl.Config.Threshold, 0.15) {
		t.Fatalf("pipeline mismatch: %+v", pl)
	}
}

func TestLoadJSONRejectsInvalidNoteKey(t *testing.T) {
	path := writePreset(t, `{"per_note": {"Cb4": {"skip": true}}}`)
	if _, err := LoadJSON(path); err == nil {
		t.Fatalf("expected error for invalid note key")
	}
}

func TestLoadJSONRejectsInvalidRanges(t *testing.T) {
	for _, content := range []string{
		`{"window": 0}`,
		`{"threshold_ratio": 1.5}`,
		`{"anchor": -0.5}`,
		`{"dynamics": {"pp": {"threshold": -0.1}}}`,
		`{"margin_before": -1}`,
		`{"dynamics": {"pp": {"frames": -5}}}`,
	} {
		if _, err := LoadJSON(writePreset(t, content)); err == nil {
			t.Errorf("expected error for %s", content)
		}
	}
}

func TestLoadJSONZeroThresholdAndLoudestAnchor(t *testing.T) {
	path := writePreset(t, `{
  "anchor": 0,
  "dynamics": {
    "mf": {"threshold": 0},
    "ff": {"anchor": 0.8}
  }
}`)
	p, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if p.Config.Anchor != nil {
		t.Fatalf("anchor 0 should select the loudest peak, got %v", *p.Config.Anchor)
	}
	mf, err := p.ForDynamics("mf")
	if err != nil {
		t.Fatalf("ForDynamics(mf): %v", err)
	}
	if !equal(mf.Config.Threshold, 0) {
		t.Fatalf("mf threshold = %v, want explicit 0", mf.Config.Threshold)
	}
	if err := mf.Config.Validate(); err != nil {
		t.Fatalf("mf config: %v", err)
	}
	ff, _ := p.ForDynamics("ff")
	if !equal(ff.Config.Anchor, 0.8) || ff.Config.Threshold != nil {
		t.Fatalf("ff config = %+v", ff.Config)
	}
	if p.Config.Anchor != nil {
		t.Fatalf("per-dynamics anchor leaked into the top level")
	}
}
