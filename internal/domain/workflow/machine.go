package workflow

import "context"

// StateMachine tracks the current state of one task and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger has a transition whose guard passes in the current state
	CanFire(ctx context.Context, trigger Trigger) bool

	// Fire executes the trigger and returns the state it moved to
	Fire(ctx context.Context, trigger Trigger) (State, error)

	// PermittedTriggers returns the triggers that can fire in the current state, in a stable order
	PermittedTriggers(ctx context.Context) []Trigger
}
