// Package hit turns a smoothed envelope into discrete, debounced hit events.
//
// A [Detector] is a two-state machine. It opens on an upward crossing of the
// threshold when at least the minimum interval has passed since the previous
// hit, and it closes once the envelope falls below 75% of the threshold.
// Closing never emits anything. A crossing that arrives inside the debounce
// window is dropped without opening, so it is evaluated again on the next
// update.
package hit

import (
	"fmt"
	"math"
	"time"
)

// CloseRatio is the fraction of the threshold below which an open detector
// closes.
const CloseRatio = 0.75

// Detector is not safe for concurrent use.
type Detector struct {
	threshold   float64
	minInterval time.Duration

	open    bool
	lastHit time.Time
}

// NewDetector creates a closed detector with a linear threshold and a
// minimum interval between hits.
func NewDetector(threshold float64, minInterval time.Duration) (*Detector, error) {
	if threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, fmt.Errorf("hit threshold must be non-negative and finite: %f", threshold)
	}

	if minInterval < 0 {
		return nil, fmt.Errorf("hit min interval must be >= 0: %s", minInterval)
	}

	return &Detector{threshold: threshold, minInterval: minInterval}, nil
}

// Update evaluates the envelope value at time now and reports whether a new
// hit starts.
func (d *Detector) Update(level float64, now time.Time) bool {
	crossed := !d.open && level >= d.threshold

	hit := false
	if crossed && d.debounced(now) {
		d.open = true
		d.lastHit = now
		hit = true
	}

	if d.open && level < d.threshold*CloseRatio {
		d.open = false
	}

	return hit
}

func (d *Detector) debounced(now time.Time) bool {
	if d.lastHit.IsZero() {
		return true
	}

	return now.Sub(d.lastHit) >= d.minInterval
}

// IsOpen reports whether the detector is currently open.
func (d *Detector) IsOpen() bool { return d.open }

// LastHit returns the time of the most recent hit, or the zero time.
func (d *Detector) LastHit() time.Time { return d.lastHit }

// Threshold returns the linear opening threshold.
func (d *Detector) Threshold() float64 { return d.threshold }

// CloseThreshold returns the linear level below which the detector closes.
func (d *Detector) CloseThreshold() float64 { return d.threshold * CloseRatio }

// MinInterval returns the debounce interval.
func (d *Detector) MinInterval() time.Duration { return d.minInterval }

