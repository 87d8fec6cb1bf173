package synth

import "errors"

// ErrInvalidConfig reports a generator setting out of range.
var ErrInvalidConfig = errors.New("invalid synth config")
