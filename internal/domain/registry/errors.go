package registry

import (
	"errors"
	"fmt"
)

// Sentinel kinds for registry errors.
var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrInvalidPolicy = errors.New("invalid unknown-entity policy")
)

// UnknownEntityError names the id that was not registered.
type UnknownEntityError struct {
	ID string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownEntity, e.ID)
}

func (e *UnknownEntityError) Unwrap() error { return ErrUnknownEntity }
