// Package envelope computes block loudness and smooths it into an envelope.
//
// [RMS] reduces one time-domain snapshot to its root-mean-square level and
// [CombineRMS] merges the levels of several simultaneously playing instances
// of the same sound with a second RMS pass. [Follower] turns the combined
// per-tick level into a smoothed envelope using asymmetric attack/release
// time constants, the same detector shape the dynamics processors use
// per sample, evaluated here once per analysis tick:
//
//	tau      = attack if level > envelope else release   (seconds, >= 1 ms)
//	gain     = min(1, 1 / (tau * tickRate))
//	envelope = envelope + (level - envelope) * gain
//
// The envelope is never negative.
package envelope
