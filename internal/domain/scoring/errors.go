package scoring

import "errors"

var (
	// ErrInvalidOdds is returned for decimal odds that are not above 1.
	ErrInvalidOdds = errors.New("scoring: decimal odds must be greater than 1")

	// ErrInvalidSigma is returned for a non-positive spread deviation.
	ErrInvalidSigma = errors.New("scoring: sigma must be positive")
)
