package norm

import "github.com/cwbudde/piano-norm/sample"

// Gains holds the per-sample multipliers applied by NormMax.
type Gains struct {
	// Target is the envelope peak every sample was scaled to.
	Target float64
	// Peaks are the merged-envelope peaks before scaling.
	Peaks map[string]float64
	// Multipliers are target/peak, 1 for silent samples.
	Multipliers map[string]float64
	// Silent lists samples with a zero (or unmeasurable) envelope peak.
	// They are passed through unscaled.
	Silent []string
}

// MaxGains computes the NormMax multipliers without applying them.
func MaxGains(c *sample.Collection, cfg Config) (Gains, error) {
	if err := cfg.Validate(); err != nil {
		return Gains{}, err
	}
	g := Gains{
		Peaks:       make(map[string]float64, c.Len()),
		Multipliers: make(map[string]float64, c.Len()),
	}
	var loudest float64
	_ = c.Each(func(key string, b sample.Buffer) error {
		p := Amplitude(b, cfg.Window, Merged).Peak()
		g.Peaks[key] = p
		if p > loudest {
			loudest = p
		}
		return nil
	})

	g.Target = loudest
	if cfg.Anchor != nil {
		g.Target = *cfg.Anchor
	}

	for _, key := range c.Keys() {
		p := g.Peaks[key]
		if p <= 0 {
			g.Multipliers[key] = 1
			g.Silent = append(g.Silent, key)
			continue
		}
		g.Multipliers[key] = g.Target / p
	}
	return g, nil
}

// NormMax scales every sample so that its merged-envelope peak equals the
// anchor, or the loudest peak in the collection when no anchor is set.
//
// Without an anchor no sample is attenuated, so a single clipped or
// unusually loud recording pulls every other sample up with it. An anchor
// below the loudest peak scales loud samples down instead.
//
// Silent samples cannot be scaled to a target; they are returned unchanged
// and reported in Gains.Silent.
func NormMax(c *sample.Collection, cfg Config) (*sample.Collection, Gains, error) {
	g, err := MaxGains(c, cfg)
	if err != nil {
		return nil, Gains{}, err
	}
	out, err := c.Map(func(key string, b sample.Buffer) (sample.Buffer, error) {
		m := g.Multipliers[key]
		if m == 1 {
			return b.Clone(), nil
		}
		return b.Scale(m), nil
	})
	if err != nil {
		return nil, Gains{}, err
	}
	return out, g, nil
}
