package norm

import (
	"fmt"

	"github.com/cwbudde/piano-norm/sample"
)

// DefaultHeadroom is the number of extra frames kept past Frames while
// aligning, so that re-slicing does not run short before the final crop.
const DefaultHeadroom = 50000

// Pipeline runs balance, peak normalization, attack alignment and crop
// over a collection.
type Pipeline struct {
	Config Config
	// Frames is the output length. Zero keeps full length.
	Frames   int
	Headroom int
	// Balance runs BalanceLR on stereo buffers before normalizing.
	Balance bool
}

// NewPipeline returns a pipeline with default settings and balancing on.
func NewPipeline(cfg Config, frames int) *Pipeline {
	return &Pipeline{
		Config:   cfg,
		Frames:   frames,
		Headroom: DefaultHeadroom,
		Balance:  true,
	}
}

// Result is the outcome of one pipeline run.
type Result struct {
	// Raw is the input after truncation and balancing.
	Raw     *sample.Collection
	Normed  *sample.Collection
	Gains   Gains
	Offsets Offsets
}

// Run processes raw and returns the normalized, aligned collection.
func (p *Pipeline) Run(raw *sample.Collection) (*Result, error) {
	if err := p.Config.Validate(); err != nil {
		return nil, err
	}
	if p.Frames < 0 || p.Headroom < 0 {
		return nil, fmt.Errorf("%w: frames and headroom must be >= 0", ErrInvalidConfig)
	}

	prepared, err := raw.Map(func(_ string, b sample.Buffer) (sample.Buffer, error) {
		if p.Frames > 0 {
			b = sample.Head(b, p.Frames+p.Headroom)
		}
		if p.Balance {
			b = Balance(b, p.Config.Window)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}

	scaled, gains, err := NormMax(prepared, p.Config)
	if err != nil {
		return nil, fmt.Errorf("norm max: %w", err)
	}
	aligned, offsets, err := NormAttack(scaled, p.Config)
	if err != nil {
		return nil, fmt.Errorf("norm attack: %w", err)
	}

	normed := aligned
	if p.Frames > 0 {
		normed, err = aligned.Map(func(_ string, b sample.Buffer) (sample.Buffer, error) {
			return sample.Head(b, p.Frames), nil
		})
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Raw:     prepared,
		Normed:  normed,
		Gains:   gains,
		Offsets: offsets,
	}, nil
}
