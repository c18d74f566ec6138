// Package gate runs the per-sound envelope, hit and spectrum analysis over a
// registry of measurement taps.
//
// A logical sound (for example "tap" or "fire_alarm") may play several
// overlapping instances. Each instance contributes one [Tap]; taps are
// grouped by the sound id passed to [Service.Register]. While at least one
// tap is registered a ticker drives [Service.Tick] at a fixed interval. Every
// pass, for each sound:
//
//  1. the RMS of every tap's time-domain snapshot is taken and the results
//     are combined with a second RMS pass,
//  2. the combined level is smoothed with attack/release time constants and
//     published as a [event.LevelEvent],
//  3. every tap's magnitude frame is reduced to log-spaced bands and the
//     average is published as a [event.SpectrumEvent] when at least one tap
//     produced a frame,
//  4. the smoothed level is run through a debounced hysteresis detector and
//     a [event.HitEvent] is published on a new hit.
//
// A sound's configuration is taken from the options of the registration
// that creates it and stays fixed until its last tap is removed, at which
// point its smoothing and hit state are discarded.
//
// Events are published after the registry lock is released, so observers
// may call [Service.Register] or [Service.Unregister] synchronously.
// Tap reads happen under the lock and must not call back into the service.
package gate
