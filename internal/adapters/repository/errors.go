package repository

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound     = errors.New("entity not found")
	ErrInvalidLimit = errors.New("invalid ranking limit")
	ErrInvalidID    = errors.New("empty entity id")
)
