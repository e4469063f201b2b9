// Package apperr holds sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrDuplicateChannel is returned when a channel name is registered twice.
	ErrDuplicateChannel = errors.New("duplicate channel")
	// ErrUnknownEvent is returned when a tag outside a bus vocabulary is published.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrMissingHub is returned when the event hub is not present in a context.
	ErrMissingHub = errors.New("event hub missing from context")
)
