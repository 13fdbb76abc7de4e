package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when no transition is configured for a trigger in the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a value does not name a lifecycle state
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when every configured transition for a trigger is guarded off
	ErrGuardFailed = errors.New("guard condition failed")
)
