package envelope

import (
	"math"
	"sync"

	"github.com/cwbudde/algo-vecmath"
)

type scratchBuf struct {
	data []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratchBuf{} },
}

// RMS returns sqrt(mean(x^2)) over samples, or 0 for an empty block.
//
// Squares are formed with the SIMD block multiply from algo-vecmath into a
// pooled scratch buffer, so steady-state calls do not allocate.
func RMS(samples []float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}

	buf := scratchPool.Get().(*scratchBuf)
	if cap(buf.data) < n {
		buf.data = make([]float64, n)
	}

	sq := buf.data[:n]
	vecmath.MulBlock(sq, samples, samples)

	sum := 0.0
	for _, v := range sq {
		sum += v
	}

	scratchPool.Put(buf)

	mean := sum / float64(n)
	if mean <= 0 || math.IsNaN(mean) {
		return 0
	}

	return math.Sqrt(mean)
}

// CombineRMS merges per-instance RMS levels into one level:
// sqrt(mean(rms_i^2)). It returns 0 when levels is empty.
func CombineRMS(levels []float64) float64 {
	if len(levels) == 0 {
		return 0
	}

	sumSq := 0.0
	for _, l := range levels {
		sumSq += l * l
	}

	return math.Sqrt(sumSq / float64(len(levels)))
}
