package spectrum

import "errors"

var (
	errEmptyFrame = errors.New("spectrum frame has no bins")
	errSampleRate = errors.New("spectrum sample rate must be positive and finite")
)
