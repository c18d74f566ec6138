// Package spectrum reduces analyser magnitude frames to log-spaced bands.
//
// A [Layout] fixes the number of bands and the frequency range. Band b spans
//
//	fLo = exp(ln(minHz) + b/N * (ln(maxHz) - ln(minHz)))
//	fHi = exp(ln(minHz) + (b+1)/N * (ln(maxHz) - ln(minHz)))
//
// so every band covers the same musical interval. Each edge maps onto an FFT
// bin with round(f / nyquist * binCount), clamped to the valid bin range, and
// the band value is the mean of the normalised (byte/255) magnitudes of the
// inclusive bin range.
//
// An [Accumulator] averages the banded output of several analysers of the
// same sound. It keeps a per-resolution bin map so that repeated frames of the
// same shape do not recompute edges.
package spectrum
