package domain

import "errors"

// Sentinel errors for the registry core. All failures returned by the domain
// and the registry service wrap exactly one of these, so callers can branch
// with errors.Is regardless of the message text.
var (
	// ErrNotFound indicates an unknown prompt, version, experiment, or variant.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration indicates an invalid experiment setup, such as traffic
	// weights not summing to 100 or fewer than two variants.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidState indicates an operation against an experiment in the
	// wrong lifecycle state, such as recording outcomes while paused.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidParameter indicates out-of-range statistical inputs, such as
	// negative counts or a zero minimum detectable effect.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrRender indicates a template rendering failure, such as an undefined
	// variable. Propagated from the renderer, never swallowed.
	ErrRender = errors.New("render error")
)
