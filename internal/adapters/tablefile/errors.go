package tablefile

import "errors"

// Sentinel errors.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrMalformed     = errors.New("malformed record")
	ErrNoInput       = errors.New("input path not set")
)
