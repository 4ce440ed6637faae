package analysis

import (
	"fmt"
	"maps"
	"math"
	"math/rand"
	"slices"
	"strings"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/cwbudde/mayfly"
)

// RefineOptions controls RefineFrequency.
type RefineOptions struct {
	// Cents is the half width of the search range around the nominal pitch.
	Cents float64
	// Window caps the number of samples analysed. Zero uses all samples.
	Window     int
	Variant    string
	Population int
	Iterations int
	Seed       int64
}

// DefaultRefineOptions searches a semitone around the nominal pitch.
func DefaultRefineOptions() RefineOptions {
	return RefineOptions{
		Cents:      50,
		Window:     16384,
		Variant:    "ma",
		Population: 10,
		Iterations: 40,
		Seed:       1,
	}
}

// Refinement is the result of RefineFrequency.
type Refinement struct {
	Nominal   float64
	Frequency float64
	Cents     float64
	Power     float64
	Evals     int
}

// RefineFrequency searches nominal ± opts.Cents for the frequency with the
// most Goertzel power in the Hann-windowed samples. A coarse grid seeds the
// search and a mayfly swarm refines it.
func RefineFrequency(samples []float64, sampleRate, nominal float64, opts RefineOptions) (Refinement, error) {
	if !(nominal > 0) || !(opts.Cents > 0) {
		return Refinement{}, fmt.Errorf("refine: nominal and cents must be > 0")
	}
	n := len(samples)
	if opts.Window > 0 && opts.Window < n {
		n = opts.Window
	}
	est, err := NewEstimator(n, sampleRate)
	if err != nil {
		return Refinement{}, err
	}
	if hi := nominal * math.Exp2(opts.Cents/1200); hi > sampleRate/2 {
		return Refinement{}, fmt.Errorf("refine: search range reaches %.1f Hz above Nyquist", hi)
	}

	build, err := swarmFor(opts.Variant)
	if err != nil {
		return Refinement{}, err
	}

	x := make([]float64, n)
	copy(x, samples[:n])
	window.Apply(window.TypeHann, x)

	res := Refinement{Nominal: nominal, Power: -1}
	score := func(cents float64) float64 {
		f := nominal * math.Exp2(cents/1200)
		p, err := est.Amp(x, []float64{f})
		res.Evals++
		if err != nil {
			return 0
		}
		if p[0] > res.Power {
			res.Power = p[0]
			res.Cents = cents
			res.Frequency = f
		}
		return p[0]
	}

	const grid = 20
	for i := 0; i <= grid; i++ {
		score(-opts.Cents + 2*opts.Cents*float64(i)/grid)
	}
	if err := swarm(build(), opts, score); err != nil {
		return Refinement{}, err
	}
	return res, nil
}

// swarms holds the mayfly variants a refinement can run.
var swarms = map[string]func() *mayfly.Config{
	"ma":      mayfly.NewDefaultConfig,
	"desma":   mayfly.NewDESMAConfig,
	"olce":    mayfly.NewOLCEConfig,
	"eobbma":  mayfly.NewEOBBMAConfig,
	"gsasma":  mayfly.NewGSASMAConfig,
	"mpma":    mayfly.NewMPMAConfig,
	"aoblmoa": mayfly.NewAOBLMOAConfig,
}

// Variants lists the names RefineOptions.Variant accepts.
func Variants() []string {
	return slices.Sorted(maps.Keys(swarms))
}

func swarmFor(variant string) (func() *mayfly.Config, error) {
	name := strings.ToLower(variant)
	if name == "" {
		name = "ma"
	}
	build, ok := swarms[name]
	if !ok {
		return nil, fmt.Errorf("refine: unknown variant %q (want %s)", variant, strings.Join(Variants(), "|"))
	}
	return build, nil
}

// swarm runs cfg over the cents offset in ±opts.Cents, maximizing score.
func swarm(cfg *mayfly.Config, opts RefineOptions, score func(cents float64) float64) (err error) {
	cfg.ProblemSize = 1
	cfg.LowerBound = -opts.Cents
	cfg.UpperBound = opts.Cents
	cfg.MaxIterations = max(1, opts.Iterations)
	cfg.NPop = max(2, opts.Population)
	cfg.NPopF = cfg.NPop
	cfg.NC = 2 * cfg.NPop
	cfg.Rand = rand.New(rand.NewSource(opts.Seed))
	cfg.ObjectiveFunc = func(pos []float64) float64 {
		return -score(core.Clamp(pos[0], -opts.Cents, opts.Cents))
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refine: %s swarm: %v", opts.Variant, r)
		}
	}()
	_, err = mayfly.Optimize(cfg)
	return err
}
