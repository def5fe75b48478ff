package envelope

import "errors"

// Precondition errors. These are returned as Go errors rather than
// envelopes because they indicate caller misuse, not a backend condition.
// Callers wrap them with context using fmt.Errorf("%w: ...").
var (
	// ErrInstanceNotFound is returned when a database or bucket name is
	// not registered with the manager.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrInvalidOperation is returned when a statement is routed to the
	// wrong entry point (e.g. a SELECT passed to Execute).
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidArgument is returned for missing or malformed arguments
	// such as an absent destination key or an unsafe identifier.
	ErrInvalidArgument = errors.New("invalid argument")
)
