package spectrum

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-gate/internal/testutil"
)

func TestMagnitudeInto(t *testing.T) {
	in := []complex128{complex(3, 4), complex(0, -2), 0}
	dst := make([]float64, len(in))
	MagnitudeInto(dst, in)
	testutil.RequireSliceNearlyEqual(t, dst, []float64{5, 2, 0}, 1e-12)
}

func TestQuantizeDB(t *testing.T) {
	mags := []float64{0, 1e-6, math.Pow(10, -65.0/20), 1, math.NaN()}
	dst := make([]byte, len(mags))
	QuantizeDB(dst, mags, -100, -30)

	if dst[0] != 0 || dst[1] != 0 {
		t.Fatalf("silence should map to 0: %v", dst[:2])
	}
	if dst[2] < 126 || dst[2] > 128 {
		t.Fatalf("mid-range value = %d, want ~127", dst[2])
	}
	if dst[3] != 255 {
		t.Fatalf("full scale = %d, want 255", dst[3])
	}
	if dst[4] != 0 {
		t.Fatalf("NaN = %d, want 0", dst[4])
	}
}
