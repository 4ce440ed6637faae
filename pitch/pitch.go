// Package pitch names the keys of the sample library.
//
// A pitch is a letter C..B, an optional flat and a single octave digit,
// written like "C4", "Eb2" or "Bb0". Flats are accepted only where they name
// a black key, so every pitch maps to exactly one linear index and back.
package pitch

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cwbudde/algo-approx"
)

// ErrInvalid is returned for names that are not a supported pitch.
var ErrInvalid = errors.New("invalid pitch")

const (
	// Letters lists the natural note letters in ascending order.
	Letters = "CDEFGAB"
	// MaxOctave is the highest octave a name can carry.
	MaxOctave = 9
	// Count is the number of distinct linear indices.
	Count = (MaxOctave + 1) * 12
)

// semitone offsets of the natural letters from C.
var naturals = [7]int{0, 2, 4, 5, 7, 9, 11}

// spelling per semitone, flats for black keys.
var spelling = [12]struct {
	letter byte
	flat   bool
}{
	{'C', false}, {'D', true}, {'D', false}, {'E', true}, {'E', false}, {'F', false},
	{'G', true}, {'G', false}, {'A', true}, {'A', false}, {'B', true}, {'B', false},
}

// Pitch is a note letter, an optional flat and an octave.
type Pitch struct {
	Letter byte
	Flat   bool
	Octave int
}

// New validates and returns a pitch.
func New(letter byte, flat bool, octave int) (Pitch, error) {
	p := Pitch{Letter: letter, Flat: flat, Octave: octave}
	if err := p.validate(); err != nil {
		return Pitch{}, err
	}
	return p, nil
}

// Parse reads a name such as "C4" or "Bb3".
func Parse(s string) (Pitch, error) {
	if len(s) < 2 || len(s) > 3 {
		return Pitch{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	flat := len(s) == 3
	if flat && s[1] != 'b' {
		return Pitch{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	d := s[len(s)-1]
	if d < '0' || d > '9' {
		return Pitch{}, fmt.Errorf("%w: %q: octave must be a digit", ErrInvalid, s)
	}
	p, err := New(s[0], flat, int(d-'0'))
	if err != nil {
		return Pitch{}, fmt.Errorf("%q: %w", s, err)
	}
	return p, nil
}

// MustParse is Parse that panics on error. For tables and tests.
func MustParse(s string) Pitch {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// FromIndex returns the pitch with linear index i.
func FromIndex(i int) (Pitch, error) {
	if i < 0 || i >= Count {
		return Pitch{}, fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalid, i, Count)
	}
	s := spelling[i%12]
	return Pitch{Letter: s.letter, Flat: s.flat, Octave: i / 12}, nil
}

// FromDiatonic returns the natural pitch at diatonic step n, C0 being 0.
func FromDiatonic(n int) (Pitch, error) {
	if n < 0 || n >= (MaxOctave+1)*7 {
		return Pitch{}, fmt.Errorf("%w: diatonic step %d out of range", ErrInvalid, n)
	}
	return Pitch{Letter: Letters[n%7], Octave: n / 7}, nil
}

func (p Pitch) validate() error {
	li := strings.IndexByte(Letters, p.Letter)
	if li < 0 {
		return fmt.Errorf("%w: letter %q", ErrInvalid, p.Letter)
	}
	if p.Flat && (p.Letter == 'C' || p.Letter == 'F') {
		return fmt.Errorf("%w: %cb has no key of its own", ErrInvalid, p.Letter)
	}
	if p.Octave < 0 || p.Octave > MaxOctave {
		return fmt.Errorf("%w: octave %d", ErrInvalid, p.Octave)
	}
	return nil
}

// Index is octave*12 plus the semitone above C.
func (p Pitch) Index() int {
	s := naturals[strings.IndexByte(Letters, p.Letter)]
	if p.Flat {
		s--
	}
	return p.Octave*12 + s
}

// Diatonic is the step count from C0 counting letters only. The flat is
// ignored, so Db4 and D4 share a step.
func (p Pitch) Diatonic() int {
	return strings.IndexByte(Letters, p.Letter) + p.Octave*7
}

// MIDI returns the MIDI note number (C4 = 60).
func (p Pitch) MIDI() int {
	return p.Index() + 12
}

// Frequency is the equal-tempered frequency with A4 = 440 Hz.
func (p Pitch) Frequency() float64 {
	return MIDIToFreq(p.MIDI())
}

func (p Pitch) String() string {
	if p.Flat {
		return fmt.Sprintf("%cb%d", p.Letter, p.Octave)
	}
	return fmt.Sprintf("%c%d", p.Letter, p.Octave)
}

// MIDIToFreq converts a MIDI note number to Hz.
func MIDIToFreq(note int) float64 {
	const a4Freq = 440.0
	const a4Note = 69
	exponent := float32(note-a4Note) / 12.0
	return a4Freq * float64(pow2Approx(exponent))
}

// Nearest returns the pitch closest to freq and the deviation of freq from
// it in cents.
func Nearest(freq float64) (Pitch, float64, error) {
	if !(freq > 0) || math.IsInf(freq, 0) {
		return Pitch{}, 0, fmt.Errorf("%w: frequency %v", ErrInvalid, freq)
	}
	semis := 12 * math.Log2(freq/440)
	p, err := FromIndex(int(math.Round(semis)) + 69 - 12)
	if err != nil {
		return Pitch{}, 0, err
	}
	return p, 100 * (semis - float64(p.MIDI()-69)), nil
}

func pow2Approx(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

// Names builds key names octave by octave, in letter order within an
// octave. With withFlats each natural is followed by its flat; C and F have
// none and are emitted alone.
func Names(letters string, octaves []int, withFlats bool) ([]string, error) {
	var out []string
	for _, o := range octaves {
		for i := 0; i < len(letters); i++ {
			p, err := New(letters[i], false, o)
			if err != nil {
				return nil, err
			}
			out = append(out, p.String())
			if !withFlats || p.Letter == 'C' || p.Letter == 'F' {
				continue
			}
			p.Flat = true
			out = append(out, p.String())
		}
	}
	return out, nil
}

// Sort orders names by linear index. Names that do not parse keep their
// relative order after all valid names.
func Sort(names []string) {
	idx := func(s string) int {
		p, err := Parse(s)
		if err != nil {
			return Count
		}
		return p.Index()
	}
	sort.SliceStable(names, func(i, j int) bool {
		return idx(names[i]) < idx(names[j])
	})
}
