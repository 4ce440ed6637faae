// Package playback plays sample buffers on the default audio device.
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/cwbudde/piano-norm/sample"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

var (
	initMu   sync.Mutex
	initRate beep.SampleRate
)

func initSpeaker(sr beep.SampleRate) error {
	initMu.Lock()
	defer initMu.Unlock()
	if initRate == sr {
		return nil
	}
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return fmt.Errorf("speaker init: %w", err)
	}
	initRate = sr
	return nil
}

// Streamer adapts buf to a beep.Streamer. Mono buffers are sent to both
// speakers.
func Streamer(buf sample.Buffer) beep.Streamer {
	chs := buf.Channels()
	left, right := chs[0], chs[len(chs)-1]
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if pos >= len(left) {
			return 0, false
		}
		for n < len(samples) && pos < len(left) {
			samples[n][0] = left[pos]
			samples[n][1] = right[pos]
			n++
			pos++
		}
		return n, true
	})
}

// Play plays buf at sampleRate and blocks until it has finished.
func Play(buf sample.Buffer, sampleRate int) error {
	if buf.Len() == 0 {
		return nil
	}
	sr := beep.SampleRate(sampleRate)
	if err := initSpeaker(sr); err != nil {
		return err
	}
	done := make(chan struct{})
	speaker.Play(beep.Seq(Streamer(buf), beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}
