package cobj

import "errors"

var (
	// ErrInvalidArgument is returned for nil classes or instances, undersized
	// instance layouts and malformed method tables.
	ErrInvalidArgument = errors.New("cobj: invalid argument")

	// ErrAllocation is returned when a compiled table or an instance could not
	// be allocated.
	ErrAllocation = errors.New("cobj: allocation failed")

	// ErrNotInitialized is returned when an instance has no compiled table or
	// a class has not been compiled where a compiled table is required.
	ErrNotInitialized = errors.New("cobj: not initialized")

	// ErrForeignClass is returned when a class is already bound to another
	// live registry.
	ErrForeignClass = errors.New("cobj: class bound to another registry")

	// ErrClosed is returned by every registry operation after Shutdown.
	ErrClosed = errors.New("cobj: registry closed")

	// ErrBusy is returned by Shutdown when live instances remain.
	ErrBusy = errors.New("cobj: live instances remain")
)
