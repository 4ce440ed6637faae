package norm

import "github.com/cwbudde/piano-norm/sample"

// Offsets describes how NormAttack re-sliced each sample.
type Offsets struct {
	Threshold float64
	// Attack is the first merged-envelope index above Threshold, 0 when the
	// envelope never crosses it.
	Attack map[string]int
	// Start is the slice start, Attack-MarginBefore clamped to 0.
	Start map[string]int
	// Missed lists samples whose envelope never crossed the threshold.
	Missed []string
}

// GuessThreshold returns ratio times the split-envelope peak of the first
// sample in c. This is a heuristic that assumes the collection has already
// been normalized; collections with very uneven dynamics should pass an
// explicit threshold.
func GuessThreshold(c *sample.Collection, window int, ratio float64) float64 {
	keys := c.Keys()
	if len(keys) == 0 {
		return 0
	}
	first, _ := c.Get(keys[0])
	return Amplitude(first, window, Split).Peak() * ratio
}

// AttackOffsets computes the NormAttack slice points without applying them.
func AttackOffsets(c *sample.Collection, cfg Config) (Offsets, error) {
	if err := cfg.Validate(); err != nil {
		return Offsets{}, err
	}
	var thr float64
	if cfg.Threshold != nil {
		thr = *cfg.Threshold
	} else {
		thr = GuessThreshold(c, cfg.Window, cfg.ThresholdRatio)
	}

	o := Offsets{
		Threshold: thr,
		Attack:    make(map[string]int, c.Len()),
		Start:     make(map[string]int, c.Len()),
	}
	_ = c.Each(func(key string, b sample.Buffer) error {
		idx := Amplitude(b, cfg.Window, Merged).FirstAbove(thr)
		if idx < 0 {
			idx = 0
			o.Missed = append(o.Missed, key)
		}
		start := idx - cfg.MarginBefore
		if start < 0 {
			start = 0
		}
		o.Attack[key] = idx
		o.Start[key] = start
		return nil
	})
	return o, nil
}

// NormAttack slides every sample so that its merged envelope first exceeds
// the threshold MarginBefore samples into the result.
//
// Samples whose attack comes earlier than MarginBefore (including samples
// that never reach the threshold) are kept from their first frame, so their
// crossing lands before the margin instead of being padded. Running
// NormAttack again on its own output does not shift it further.
func NormAttack(c *sample.Collection, cfg Config) (*sample.Collection, Offsets, error) {
	o, err := AttackOffsets(c, cfg)
	if err != nil {
		return nil, Offsets{}, err
	}
	out, err := c.Map(func(key string, b sample.Buffer) (sample.Buffer, error) {
		return sample.From(b, o.Start[key]).Clone(), nil
	})
	if err != nil {
		return nil, Offsets{}, err
	}
	return out, o, nil
}
