package sample

import (
	"errors"
	"testing"
)

func TestNewStereoRejectsLengthMismatch(t *testing.T) {
	_, err := NewStereo([]float64{1, 2}, []float64{1})
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestSliceClampsNegativeStart(t *testing.T) {
	m := NewMono([]float64{1, 2, 3, 4})
	got := m.Slice(-3, 2).(Mono)
	if len(got.Samples) != 2 || got.Samples[0] != 1 || got.Samples[1] != 2 {
		t.Fatalf("unexpected slice: %v", got.Samples)
	}
	if n := m.Slice(10, 20).Len(); n != 0 {
		t.Fatalf("slice past end should be empty, got %d", n)
	}
	if n := m.Slice(-5, -1).Len(); n != 0 {
		t.Fatalf("slice before start should be empty, got %d", n)
	}
}

func TestSliceDoesNotShareCapacity(t *testing.T) {
	m := NewMono([]float64{1, 2, 3, 4})
	head := m.Slice(0, 2).(Mono)
	head.Samples = append(head.Samples, 9)
	if m.Samples[2] != 3 {
		t.Fatalf("append through slice modified source: %v", m.Samples)
	}
}

func TestScaleReturnsCopy(t *testing.T) {
	s, err := NewStereo([]float64{1, -1}, []float64{0.5, 0.25})
	if err != nil {
		t.Fatalf("NewStereo: %v", err)
	}
	got := s.Scale(2).(Stereo)
	if got.Left[0] != 2 || got.Right[1] != 0.5 {
		t.Fatalf("scale mismatch: %+v", got)
	}
	if s.Left[0] != 1 {
		t.Fatalf("source modified: %+v", s)
	}
}

func TestInterleavedRoundTrip(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7}
	s := Interleaved(data)
	if s.Len() != 3 {
		t.Fatalf("expected 3 frames, got %d", s.Len())
	}
	back := s.Interleave()
	for i := range back {
		if back[i] != data[i] {
			t.Fatalf("frame %d: got %v want %v", i, back[i], data[i])
		}
	}
}

func TestStereoMix(t *testing.T) {
	s, _ := NewStereo([]float64{1, 0}, []float64{0, -1})
	mix := s.Mix()
	if mix[0] != 0.5 || mix[1] != -0.5 {
		t.Fatalf("mix mismatch: %v", mix)
	}
}

func TestCollectionRejectsDuplicateKey(t *testing.T) {
	c := NewCollection()
	if err := c.Add("C4", NewMono([]float64{1})); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.Add("C4", NewMono([]float64{2})); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestCollectionKeepsInsertionOrder(t *testing.T) {
	c := NewCollection()
	for _, k := range []string{"G4", "C4", "E4"} {
		if err := c.Add(k, NewMono(nil)); err != nil {
			t.Fatalf("Add(%s): %v", k, err)
		}
	}
	mapped, err := c.Map(func(_ string, b Buffer) (Buffer, error) { return b.Clone(), nil })
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	keys := mapped.Keys()
	want := []string{"G4", "C4", "E4"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestCollectionLayout(t *testing.T) {
	c := NewCollection()
	if _, ok := c.Layout(); ok {
		t.Fatalf("empty collection has no layout")
	}
	_ = c.Add("a", NewMono([]float64{1}))
	st, _ := NewStereo([]float64{1}, []float64{1})
	_ = c.Add("b", st)
	if _, ok := c.Layout(); ok {
		t.Fatalf("mixed layouts should not report ok")
	}
}
