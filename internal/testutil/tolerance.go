package testutil

import (
	"math"
	"testing"
)

// RequireNearlyEqual fails t if got and want differ by more than eps.
func RequireNearlyEqual(t *testing.T, name string, got, want, eps float64) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Fatalf("%s: got %v, want %v (eps %v)", name, got, want, eps)
	}
}

// RequireSliceNearlyEqual fails t if got and want differ in length or if
// any element pair exceeds eps (absolute tolerance).
func RequireSliceNearlyEqual(t *testing.T, got, want []float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		diff := math.Abs(got[i] - want[i])
		if diff > eps {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireInRange fails t if any element is non-finite or outside [lo, hi].
func RequireInRange(t *testing.T, data []float64, lo, hi float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
		if v < lo || v > hi {
			t.Fatalf("index %d: %v outside [%v, %v]", i, v, lo, hi)
		}
	}
}
