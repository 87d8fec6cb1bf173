package service

import "errors"

var (
	// ErrNotConfigured is returned when a pipeline stage lacks a collaborator.
	ErrNotConfigured = errors.New("service not configured")

	// ErrNotStarted is returned when fits are submitted before Start.
	ErrNotStarted = errors.New("service not started")

	// ErrUnknownTarget is returned for a fit job naming no known target.
	ErrUnknownTarget = errors.New("unknown fit target")
)
