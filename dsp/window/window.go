// Package window generates the analysis windows applied before an FFT.
package window

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeBlackman
)

var (
	hannCoeffs     = []float64{0.5, 0.5}
	blackmanCoeffs = []float64{0.42, 0.5, 0.08}
)

// Option configures window generation.
type Option func(*config)

type config struct {
	periodic bool
}

// WithPeriodic configures periodic form (FFT framing) instead of symmetric form.
func WithPeriodic() Option {
	return func(c *config) {
		c.periodic = true
	}
}

// ParseType resolves a window name.
func ParseType(name string) (Type, error) {
	switch name {
	case "rectangular", "none":
		return TypeRectangular, nil
	case "hann":
		return TypeHann, nil
	case "blackman":
		return TypeBlackman, nil
	default:
		return 0, fmt.Errorf("unsupported window: %q", name)
	}
}

// String returns the window name.
func (t Type) String() string {
	switch t {
	case TypeRectangular:
		return "rectangular"
	case TypeHann:
		return "hann"
	case TypeBlackman:
		return "blackman"
	default:
		return fmt.Sprintf("window(%d)", int(t))
	}
}

// Generate returns window coefficients of the given length.
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}

	var cfg config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	out := make([]float64, length)
	for i := range out {
		out[i] = evalWindow(t, samplePosition(i, length, cfg.periodic))
	}

	return out
}

// Apply multiplies samples in place with coeffs.
func Apply(samples, coeffs []float64) error {
	if len(samples) != len(coeffs) {
		return fmt.Errorf("window length %d does not match %d samples", len(coeffs), len(samples))
	}

	vecmath.MulBlockInPlace(samples, coeffs)

	return nil
}

func samplePosition(n, size int, periodic bool) float64 {
	if size <= 1 {
		return 0
	}

	if periodic {
		return float64(n) / float64(size)
	}

	return float64(n) / float64(size-1)
}

func evalWindow(t Type, x float64) float64 {
	switch t {
	case TypeHann:
		return cosineFromCoeffs(x, hannCoeffs)
	case TypeBlackman:
		return cosineFromCoeffs(x, blackmanCoeffs)
	default:
		return 1
	}
}

// cosineFromCoeffs evaluates a0 - a1 cos(2 pi x) + a2 cos(4 pi x) - ...
func cosineFromCoeffs(x float64, coeffs []float64) float64 {
	phase := 2 * math.Pi * x

	sum := 0.0
	sign := 1.0
	for k, c := range coeffs {
		sum += sign * c * math.Cos(float64(k)*phase)
		sign = -sign
	}

	return sum
}
