package testutil

import (
	"math"
	"testing"
)

func TestDeterministicSine(t *testing.T) {
	s := DeterministicSine(1000, 48000, 1.0, 48)
	if len(s) != 48 {
		t.Fatalf("len = %d, want 48", len(s))
	}
	if math.Abs(s[0]) > 1e-15 {
		t.Fatalf("s[0] = %v, want 0", s[0])
	}
	for i, v := range s {
		if v < -1 || v > 1 {
			t.Fatalf("s[%d] = %v out of range", i, v)
		}
	}
}

func TestDeterministicNoise(t *testing.T) {
	a := DeterministicNoise(42, 1.0, 64)
	b := DeterministicNoise(42, 1.0, 64)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("noise not deterministic at index %d", i)
		}
	}
}

func TestSquare(t *testing.T) {
	s := Square(0.5, 8)
	for i, v := range s {
		if math.Abs(v) != 0.5 {
			t.Fatalf("s[%d] = %v, want magnitude 0.5", i, v)
		}
	}
	if s[0] != 0.5 || s[1] != -0.5 {
		t.Fatalf("unexpected polarity: %v %v", s[0], s[1])
	}
}

func TestDC(t *testing.T) {
	RequireSliceNearlyEqual(t, DC(0.25, 3), []float64{0.25, 0.25, 0.25}, 0)
}
