package services

import "errors"

var (
	// ErrNotConfigured is returned by gateways whose credentials are missing.
	ErrNotConfigured = errors.New("gateway not configured")
	// ErrUnavailable marks an AI call that could not produce a usable result.
	ErrUnavailable = errors.New("intelligence unavailable")
)
