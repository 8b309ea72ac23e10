package core

import "errors"

// Sentinel errors shared across packages. Callers match with errors.Is.
var (
	// ErrNotReady is returned when a result is requested before the session
	// reached a terminal status.
	ErrNotReady = errors.New("session result not ready")

	// ErrSessionNotFound is returned by stores and the engine for unknown
	// session identifiers.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTerminalState signals an attempted mutation of a session that has
	// already reached a terminal status. This is a programming-contract
	// violation, not an operational condition.
	ErrTerminalState = errors.New("session is in a terminal state")

	// ErrConfig is returned when a session cannot be created because the
	// target context or engine configuration is invalid. It is the only
	// error class that aborts session creation.
	ErrConfig = errors.New("invalid configuration")
)
