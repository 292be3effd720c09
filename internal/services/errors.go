// ABOUTME: Sentinel errors returned by registry validation.
// ABOUTME: Callers match them with errors.Is.

package services

import "errors"

// Registration validation errors. Callers match them with errors.Is.
var (
	// ErrInvalidHandle is returned for nil, unnamed, non-comparable, or
	// misbehaving handles and for offers with an unknown capability kind.
	ErrInvalidHandle = errors.New("invalid provider handle")

	// ErrInvalidOwner is returned when a registration has no owning plugin.
	ErrInvalidOwner = errors.New("invalid provider owner")

	// ErrInvalidPriority is returned for a priority outside the declared tiers.
	ErrInvalidPriority = errors.New("invalid provider priority")

	// ErrDuplicateHandle is returned when the same handle is already registered.
	ErrDuplicateHandle = errors.New("provider handle already registered")
)
