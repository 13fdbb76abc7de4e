package workflow

import "fmt"

// State represents a task state in the annotation lifecycle
type State string

const (
	StatePending    State = "pending"
	StateAnnotating State = "annotating"
	StateReviewing  State = "reviewing"
	StateCompleted  State = "completed"
	StateRejected   State = "rejected"
)

var validStates = map[State]bool{
	StatePending:    true,
	StateAnnotating: true,
	StateReviewing:  true,
	StateCompleted:  true,
	StateRejected:   true,
}

// Rejected tasks loop back into annotation, so completed is the only terminal state.
var terminalStates = map[State]bool{
	StateCompleted: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// HoldsAssignee reports whether a task in this state must carry an assignee.
// Rejected tasks keep the assignee of the last submission.
func (s State) HoldsAssignee() bool {
	return s == StateAnnotating || s == StateReviewing
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}

// AllStates returns every lifecycle state in lifecycle order
func AllStates() []State {
	return []State{StatePending, StateAnnotating, StateReviewing, StateCompleted, StateRejected}
}

// ParseState converts a stored status value into a State
func ParseState(s string) (State, error) {
	state := State(s)
	if !state.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
	return state, nil
}
