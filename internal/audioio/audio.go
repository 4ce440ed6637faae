// Package audioio reads and writes note samples for the command line tools.
package audioio

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-dsp/dsp/core"
	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/piano-norm/dsp"
	"github.com/cwbudde/piano-norm/sample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
	"github.com/gopxl/beep/flac"
	mewflac "github.com/mewkiz/flac"
	mewframe "github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// ErrSampleRate is returned when a file's sample rate differs from the
// requested one and resampling was not allowed.
var ErrSampleRate = errors.New("unexpected sample rate")

// DefaultBitDepth is the PCM bit depth used by Save when none is given.
const DefaultBitDepth = 24

// Load reads a .wav or .flac note at sample.Rate. ok is false, with a nil
// error, when path does not exist.
func Load(path string) (sample.Buffer, bool, error) {
	return LoadAt(path, sample.Rate, false)
}

// LoadAt reads a note and checks its sample rate against rate. With
// resample set, a file at another rate is converted instead of rejected.
func LoadAt(path string, rate int, resample bool) (sample.Buffer, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var (
		chs [][]float64
		sr  int
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		chs, sr, err = readWAV(path)
	case ".flac":
		chs, sr, err = readFLAC(path)
	default:
		return nil, false, fmt.Errorf("%s: unsupported file type", path)
	}
	if err != nil {
		return nil, false, err
	}

	if sr != rate {
		if !resample {
			return nil, false, fmt.Errorf("%s: %w: %d Hz, want %d Hz", path, ErrSampleRate, sr, rate)
		}
		for i, ch := range chs {
			if chs[i], err = resampleChannel(ch, sr, rate); err != nil {
				return nil, false, fmt.Errorf("%s: resample: %w", path, err)
			}
		}
	}

	buf, err := sample.FromChannels(chs)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return buf, true, nil
}

func readWAV(path string) ([][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("invalid wav buffer: %s", path)
	}
	nch := buf.Format.NumChannels
	frames := len(buf.Data) / nch
	chs := make([][]float64, nch)
	for c := range chs {
		chs[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < nch; c++ {
			chs[c][i] = float64(buf.Data[i*nch+c])
		}
	}
	return chs, buf.Format.SampleRate, nil
}

func readFLAC(path string) ([][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	stream, format, err := flac.Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	defer stream.Close()

	nch := format.NumChannels
	if nch < 1 {
		return nil, 0, fmt.Errorf("invalid flac stream: %s", path)
	}
	chs := make([][]float64, min(nch, 2))
	block := make([][2]float64, 4096)
	for {
		n, ok := stream.Stream(block)
		for _, fr := range block[:n] {
			for c := range chs {
				chs[c] = append(chs[c], fr[c])
			}
		}
		if !ok {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	if nch > 2 {
		return nil, 0, fmt.Errorf("%s: %w: got %d channels", path, sample.ErrChannels, nch)
	}
	return chs, int(format.SampleRate), nil
}

func resampleChannel(in []float64, fromRate int, toRate int) ([]float64, error) {
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

// Save writes buf as PCM WAV, or as FLAC when path ends in .flac. Samples
// are clipped to full scale and non-finite samples written as silence.
// Parent directories are created. bitDepth 0 means DefaultBitDepth.
func Save(path string, buf sample.Buffer, sampleRate int, bitDepth int) error {
	if bitDepth == 0 {
		bitDepth = DefaultBitDepth
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".flac") {
		return saveFLAC(path, buf, sampleRate, bitDepth)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	chs := buf.Channels()
	nch := len(chs)
	data := make([]float32, buf.Len()*nch)
	for c, ch := range chs {
		for i, v := range ch {
			data[i*nch+c] = float32(clip(v))
		}
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, nch, 1)
	pcm := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: nch,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(pcm); err != nil {
		return err
	}
	return enc.Close()
}

const (
	flacBlock    = 4096
	flacMinBlock = 16
)

// saveFLAC writes verbatim subframes in variable-size blocks. A tail shorter
// than flacMinBlock is folded into the block before it.
func saveFLAC(path string, buf sample.Buffer, sampleRate int, bitDepth int) error {
	switch bitDepth {
	case 8, 16, 24:
	default:
		return fmt.Errorf("%s: flac bit depth %d not supported", path, bitDepth)
	}
	n := buf.Len()
	if n < flacMinBlock {
		return fmt.Errorf("%s: flac needs at least %d frames, got %d", path, flacMinBlock, n)
	}
	chs := buf.Channels()
	layout := mewframe.ChannelsMono
	if len(chs) == 2 {
		layout = mewframe.ChannelsLR
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	info := &meta.StreamInfo{
		BlockSizeMin:  flacMinBlock,
		BlockSizeMax:  flacBlock + flacMinBlock,
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(len(chs)),
		BitsPerSample: uint8(bitDepth),
	}
	// The encoder owns f from here and closes it.
	enc, err := mewflac.NewEncoder(f, info)
	if err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}

	scale := float64(int64(1) << (bitDepth - 1))
	for start := 0; start < n; {
		size := min(flacBlock, n-start)
		if rest := n - start - size; rest > 0 && rest < flacMinBlock {
			size += rest
		}
		subs := make([]*mewframe.Subframe, len(chs))
		for c, ch := range chs {
			pcm := make([]int32, size)
			for i, v := range ch[start : start+size] {
				pcm[i] = int32(core.Clamp(math.Round(clip(v)*scale), -scale, scale-1))
			}
			subs[c] = &mewframe.Subframe{
				SubHeader: mewframe.SubHeader{Pred: mewframe.PredVerbatim},
				Samples:   pcm,
				NSamples:  size,
			}
		}
		fr := &mewframe.Frame{
			Header: mewframe.Header{
				BlockSize:     uint16(size),
				SampleRate:    uint32(sampleRate),
				Channels:      layout,
				BitsPerSample: uint8(bitDepth),
			},
			Subframes: subs,
		}
		if err := enc.WriteFrame(fr); err != nil {
			enc.Close()
			return fmt.Errorf("%s: %w", path, err)
		}
		start += size
	}
	return enc.Close()
}

// clipLimit keeps full scale one 24-bit step below 1 so it never wraps
// when converted to integer PCM.
const clipLimit = 1 - 1.0/(1<<23)

func clip(v float64) float64 {
	if !dsp.IsFinite(v) {
		return 0
	}
	return core.Clamp(v, -clipLimit, clipLimit)
}
