package envelope

import (
	"fmt"
	"math"
)

const (
	// DefaultTickRate is the nominal analysis rate in ticks per second.
	DefaultTickRate = 60.0

	// MinTimeConstant is the floor applied to attack and release in seconds.
	MinTimeConstant = 0.001
)

// Follower is an attack/release envelope follower advanced once per tick.
//
// Follower is not safe for concurrent use.
type Follower struct {
	attack   float64 // seconds
	release  float64 // seconds
	tickRate float64

	attackGain  float64
	releaseGain float64

	value float64
}

// NewFollower creates a follower with attack and release in seconds and the
// nominal tick rate in Hz. Time constants below [MinTimeConstant] are raised
// to it.
func NewFollower(attack, release, tickRate float64) (*Follower, error) {
	if tickRate <= 0 || math.IsNaN(tickRate) || math.IsInf(tickRate, 0) {
		return nil, fmt.Errorf("envelope tick rate must be positive and finite: %f", tickRate)
	}

	if math.IsNaN(attack) || math.IsInf(attack, 0) {
		return nil, fmt.Errorf("envelope attack must be finite: %f", attack)
	}

	if math.IsNaN(release) || math.IsInf(release, 0) {
		return nil, fmt.Errorf("envelope release must be finite: %f", release)
	}

	f := &Follower{
		attack:   math.Max(MinTimeConstant, attack),
		release:  math.Max(MinTimeConstant, release),
		tickRate: tickRate,
	}
	f.attackGain = stepGain(f.attack, tickRate)
	f.releaseGain = stepGain(f.release, tickRate)

	return f, nil
}

// stepGain is the per-tick fraction of the distance to the target covered
// for time constant tau.
func stepGain(tau, tickRate float64) float64 {
	return math.Min(1, 1/(tau*tickRate))
}

// Update feeds one combined level and returns the new envelope value.
func (f *Follower) Update(level float64) float64 {
	if math.IsNaN(level) {
		level = 0
	}

	gain := f.releaseGain
	if level > f.value {
		gain = f.attackGain
	}

	f.value += (level - f.value) * gain
	if f.value < 0 || math.IsNaN(f.value) {
		f.value = 0
	}

	return f.value
}

// Value returns the current envelope.
func (f *Follower) Value() float64 { return f.value }

// Attack returns the attack time constant in seconds.
func (f *Follower) Attack() float64 { return f.attack }

// Release returns the release time constant in seconds.
func (f *Follower) Release() float64 { return f.release }

// TickRate returns the nominal tick rate in Hz.
func (f *Follower) TickRate() float64 { return f.tickRate }

// AttackGain returns the per-tick step factor used while rising.
func (f *Follower) AttackGain() float64 { return f.attackGain }

// ReleaseGain returns the per-tick step factor used while falling.
func (f *Follower) ReleaseGain() float64 { return f.releaseGain }

