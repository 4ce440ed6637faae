package norm

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned for configurations that cannot be applied.
var ErrInvalidConfig = errors.New("norm: invalid config")

const (
	// DefaultWindow is 10 ms at 44.1 kHz.
	DefaultWindow         = 441
	DefaultThresholdRatio = 0.2
	DefaultMarginBefore   = 500
)

// Config controls envelope extraction, peak normalization and attack
// alignment.
type Config struct {
	// Window is the envelope boxcar length in samples.
	Window int
	// Anchor is the target envelope peak. Nil selects the loudest peak of
	// the collection.
	Anchor *float64
	// Threshold is the attack threshold on the merged envelope. Nil guesses
	// it as ThresholdRatio times the envelope peak of the first sample. An
	// explicit 0 finds the first non-silent envelope value.
	Threshold      *float64
	ThresholdRatio float64
	// MarginBefore is the number of samples kept ahead of the attack.
	MarginBefore int
}

// DefaultConfig returns the settings used for the piano sample library.
func DefaultConfig() Config {
	return Config{
		Window:         DefaultWindow,
		ThresholdRatio: DefaultThresholdRatio,
		MarginBefore:   DefaultMarginBefore,
	}
}

// WithAnchor returns c with a fixed anchor.
func (c Config) WithAnchor(v float64) Config {
	c.Anchor = &v
	return c
}

// WithThreshold returns c with a fixed attack threshold.
func (c Config) WithThreshold(v float64) Config {
	c.Threshold = &v
	return c
}

// Validate checks that c can be applied.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be > 0, got %d", ErrInvalidConfig, c.Window)
	}
	if a := c.Anchor; a != nil && (!(*a > 0) || math.IsInf(*a, 0)) {
		return fmt.Errorf("%w: anchor must be finite and > 0, got %v", ErrInvalidConfig, *a)
	}
	if t := c.Threshold; t != nil && (!(*t >= 0) || math.IsInf(*t, 0)) {
		return fmt.Errorf("%w: threshold must be finite and >= 0, got %v", ErrInvalidConfig, *t)
	}
	if c.Threshold == nil && (!(c.ThresholdRatio > 0) || math.IsInf(c.ThresholdRatio, 0)) {
		return fmt.Errorf("%w: threshold_ratio must be > 0 when no threshold is given", ErrInvalidConfig)
	}
	if c.MarginBefore < 0 {
		return fmt.Errorf("%w: margin_before must be >= 0, got %d", ErrInvalidConfig, c.MarginBefore)
	}
	return nil
}
