package analysis

import (
	"encoding/json"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	dsptime "github.com/cwbudde/algo-dsp/stats/time"
	"github.com/cwbudde/piano-norm/norm"
	"github.com/cwbudde/piano-norm/sample"
)

const (
	reportFrame = 256
	reportHop   = 128

	// decayRangeDB is how far below its loudest frame a note is followed.
	decayRangeDB   = 60
	minDecayFrames = 6
)

// NoteReport summarizes the level of one note sample.
type NoteReport struct {
	Frames   int     `json:"frames"`
	Channels int     `json:"channels"`
	Peak     float64 `json:"peak"`
	PeakDB   float64 `json:"peak_db"`
	RMS      float64 `json:"rms"`
	RMSDB    float64 `json:"rms_db"`
	Crest    float64 `json:"crest_factor"`

	EnvelopePeak float64 `json:"envelope_peak"`
	// Attack is the first merged-envelope index above the threshold, -1 if
	// the envelope never crosses it.
	Attack int `json:"attack"`
	// DecayDBPerS is the fitted fall of the RMS level after its loudest
	// frame, down to 60 dB below it. NaN when too few frames remain.
	DecayDBPerS float64 `json:"decay_db_per_s"`
}

// Describe measures buf. The attack threshold is cfg.Threshold when set,
// otherwise cfg.ThresholdRatio times the sample's own envelope peak.
func Describe(buf sample.Buffer, cfg norm.Config, sampleRate int) NoteReport {
	mono := buf.Mix()
	st := dsptime.Calculate(mono)
	r := NoteReport{
		Frames:   buf.Len(),
		Channels: len(buf.Channels()),
		Peak:     st.Peak,
		PeakDB:   linToDB(st.Peak),
		RMS:      st.RMS,
		RMSDB:    linToDB(st.RMS),
		Crest:    st.CrestFactor,
	}

	env := norm.Amplitude(buf, cfg.Window, norm.Merged)
	r.EnvelopePeak = env.Peak()
	thr := cfg.ThresholdRatio * r.EnvelopePeak
	if cfg.Threshold != nil {
		thr = *cfg.Threshold
	}
	r.Attack = env.FirstAbove(thr)

	r.DecayDBPerS = math.NaN()
	if sampleRate > 0 {
		if rate, ok := decayRate(levelCurve(mono), float64(reportHop)/float64(sampleRate)); ok {
			r.DecayDBPerS = rate
		}
	}
	return r
}

// MarshalJSON writes a missing decay slope as null.
func (r NoteReport) MarshalJSON() ([]byte, error) {
	type plain NoteReport
	out := struct {
		plain
		DecayDBPerS *float64 `json:"decay_db_per_s"`
	}{plain: plain(r)}
	if !math.IsNaN(r.DecayDBPerS) && !math.IsInf(r.DecayDBPerS, 0) {
		v := r.DecayDBPerS
		out.DecayDBPerS = &v
	}
	return json.Marshal(out)
}

// levelCurve is the short-time RMS level of x in dBFS, one value per hop.
func levelCurve(x []float64) []float64 {
	if len(x) < reportFrame {
		return nil
	}
	out := make([]float64, 1+(len(x)-reportFrame)/reportHop)
	for i := range out {
		start := i * reportHop
		out[i] = linToDB(dsptime.RMS(x[start : start+reportFrame]))
	}
	return out
}

func linToDB(x float64) float64 {
	return core.LinearToDB(math.Max(x, 1e-12))
}

// decayRate is the fitted fall of levels in dB per second, taken from the
// frame after the loudest one until the level drops decayRangeDB below it.
func decayRate(levels []float64, hopSec float64) (float64, bool) {
	if len(levels) == 0 || !(hopSec > 0) {
		return 0, false
	}
	top := 0
	for i, v := range levels {
		if v > levels[top] {
			top = i
		}
	}
	tail := levels[top+1:]
	floor := levels[top] - decayRangeDB
	for i, v := range tail {
		if v < floor {
			tail = tail[:i]
			break
		}
	}
	if len(tail) < minDecayFrames {
		return 0, false
	}
	return slope(tail) / hopSec, true
}

// slope is the least-squares gradient of ys over their index.
func slope(ys []float64) float64 {
	n := float64(len(ys))
	mx := (n - 1) / 2
	var my float64
	for _, y := range ys {
		my += y
	}
	my /= n
	var num, den float64
	for i, y := range ys {
		dx := float64(i) - mx
		num += dx * (y - my)
		den += dx * dx
	}
	return num / den
}
