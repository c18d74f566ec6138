package spectrum

import (
	"math"
	"sync"

	"github.com/cwbudde/algo-vecmath"
)

// scratchBuf holds pooled scratch memory for complex-to-real unpacking.
type scratchBuf struct {
	data []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratchBuf{} },
}

func getScratch(n int) (re, im []float64, buf *scratchBuf) {
	buf = scratchPool.Get().(*scratchBuf)
	need := 2 * n
	if cap(buf.data) < need {
		buf.data = make([]float64, need)
	} else {
		buf.data = buf.data[:need]
	}
	return buf.data[:n], buf.data[n:need], buf
}

// MagnitudeInto computes |X[k]| for every bin of in into dst, which must have
// the same length. Scratch buffers are pooled, so it does not allocate in
// steady state.
func MagnitudeInto(dst []float64, in []complex128) {
	if len(in) == 0 {
		return
	}

	re, im, buf := getScratch(len(in))
	for i, c := range in {
		re[i] = real(c)
		im[i] = imag(c)
	}

	vecmath.Magnitude(dst, re, im)
	scratchPool.Put(buf)
}

// QuantizeDB maps linear magnitudes onto bytes: values at or below minDB map
// to 0, values at or above maxDB map to 255, linear in dB in between.
func QuantizeDB(dst []byte, mags []float64, minDB, maxDB float64) {
	span := maxDB - minDB
	if span <= 0 {
		span = 1
	}

	scale := maxMagnitude / span

	for i, m := range mags {
		if m <= 0 || math.IsNaN(m) {
			dst[i] = 0
			continue
		}

		v := (20*math.Log10(m) - minDB) * scale
		switch {
		case v <= 0:
			dst[i] = 0
		case v >= maxMagnitude:
			dst[i] = 255
		default:
			dst[i] = byte(v)
		}
	}
}
