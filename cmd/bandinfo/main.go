// Command bandinfo prints the log-spaced band layout used by the gate
// spectrum reduction.
//
// Usage:
//
//	bandinfo [flags] [band ...]
//
// Without arguments it prints every band.
//
// Examples:
//
//	bandinfo
//	bandinfo -rate 44100 -bins 1024 0 64 127
//	bandinfo -bands 32 -min 40 -max 16000
//	bandinfo -window blackman -bins 512
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/cwbudde/algo-gate/dsp/spectrum"
	"github.com/cwbudde/algo-gate/dsp/window"
)

func main() {
	bands := flag.Int("bands", spectrum.DefaultBands, "number of log-spaced bands")
	minHz := flag.Float64("min", spectrum.DefaultMinHz, "lowest band edge in Hz")
	maxHz := flag.Float64("max", spectrum.DefaultMaxHz, "highest band edge in Hz")
	rate := flag.Float64("rate", 48000, "sample rate in Hz")
	bins := flag.Int("bins", 512, "magnitude bin count (FFT size / 2)")
	win := flag.String("window", "", "also print the coherent gain of this analysis window")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bandinfo [flags] [band ...]\n\n")
		fmt.Fprintf(os.Stderr, "Prints band edges and the FFT bins each band averages.\n")
		fmt.Fprintf(os.Stderr, "Without arguments, prints every band.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bandinfo -rate 44100 -bins 1024 0 64 127\n")
		fmt.Fprintf(os.Stderr, "  bandinfo -bands 32 -min 40 -max 16000\n")
	}
	flag.Parse()

	layout, err := spectrum.NewLayout(*bands, *minHz, *maxHz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *bins <= 0 || *rate <= 0 {
		fmt.Fprintf(os.Stderr, "error: -bins and -rate must be positive\n")
		os.Exit(1)
	}

	selected, err := resolveBands(flag.Args(), layout.NumBands())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *win != "" {
		t, err := window.ParseType(*win)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("window %s: coherent gain %.6f\n\n", t, coherentGain(t, 2**bins))
	}

	if err := printLayout(os.Stdout, layout, selected, *bins, *rate); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func resolveBands(args []string, n int) ([]int, error) {
	if len(args) == 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}

	out := make([]int, 0, len(args))
	for _, a := range args {
		b, err := strconv.Atoi(a)
		if err != nil || b < 0 || b >= n {
			return nil, fmt.Errorf("invalid band %q (want 0..%d)", a, n-1)
		}
		out = append(out, b)
	}
	return out, nil
}

func coherentGain(t window.Type, size int) float64 {
	coeffs := window.Generate(t, size, window.WithPeriodic())
	sum := 0.0
	for _, c := range coeffs {
		sum += c
	}
	return sum / float64(size)
}

func printLayout(w io.Writer, layout *spectrum.Layout, selected []int, bins int, rate float64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "Band\tLow [Hz]\tHigh [Hz]\tFirst Bin\tLast Bin\tBins\n"); err != nil {
		return fmt.Errorf("write output header: %w", err)
	}
	if _, err := fmt.Fprintf(tw, "----\t--------\t---------\t---------\t--------\t----\n"); err != nil {
		return fmt.Errorf("write output header: %w", err)
	}

	for _, b := range selected {
		lo, hi := layout.Edges(b)
		first, last := layout.BinRange(b, bins, rate)
		if _, err := fmt.Fprintf(tw, "%d\t%.1f\t%.1f\t%d\t%d\t%d\n", b, lo, hi, first, last, last-first+1); err != nil {
			return fmt.Errorf("write output row: %w", err)
		}
	}
	return tw.Flush()
}
