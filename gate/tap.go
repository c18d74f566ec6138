package gate

import "fmt"

// Tap is a measurement handle bound to one playing instance of a sound.
// Reads are expected to be cheap, non-blocking copies out of host buffers. An
// error excludes the tap from the current tick.
type Tap interface {
	// ReadTimeDomain returns the most recent fixed-size window of samples.
	ReadTimeDomain() ([]float64, error)
	// ReadFrequency returns the most recent magnitude frame.
	ReadFrequency() (FrequencyFrame, error)
}

// FrequencyFrame is one magnitude snapshot covering 0..SampleRate/2.
type FrequencyFrame struct {
	// Magnitudes holds one 0..255 value per bin.
	Magnitudes []byte
	// SampleRate of the tapped signal. Zero selects the service sample rate.
	SampleRate float64
}

// TapID identifies one registration.
type TapID uint64

// Handle identifies a registered tap. It is returned by [Service.Register]
// and consumed by [Service.Unregister].
type Handle struct {
	Source string
	Tap    TapID
}

// String returns "source#tap".
func (h Handle) String() string {
	return fmt.Sprintf("%s#%d", h.Source, h.Tap)
}
