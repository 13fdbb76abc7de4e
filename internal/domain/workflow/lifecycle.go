package workflow

import "context"

// TaskFacts carries what the lifecycle guards need to know about a task and its caller
type TaskFacts struct {
	// Assignee is the current assignee of the task, nil when unassigned
	Assignee *int64

	// Actor is the user attempting the transition
	Actor int64
}

func (f TaskFacts) unassigned(context.Context) bool {
	return f.Assignee == nil
}

func (f TaskFacts) heldByActorOrFree(context.Context) bool {
	return f.Assignee == nil || *f.Assignee == f.Actor
}

// NewTaskMachine builds the task lifecycle state machine positioned at the given state.
//
//	pending    --CLAIM(unassigned)--> annotating
//	pending    --ASSIGN-------------> annotating
//	pending    --SUBMIT(owner)------> reviewing
//	annotating --SUBMIT(owner)------> reviewing
//	reviewing  --APPROVE------------> completed
//	reviewing  --REJECT-------------> rejected
//	rejected   --CLAIM--------------> annotating
//	rejected   --SUBMIT(owner)------> reviewing
func NewTaskMachine(state State, facts TaskFacts) StateMachine {
	builder := NewBuilder()

	builder.Configure(StatePending).
		PermitIf(TriggerClaim, StateAnnotating, facts.unassigned).
		Permit(TriggerAssign, StateAnnotating).
		PermitIf(TriggerSubmit, StateReviewing, facts.heldByActorOrFree)

	builder.Configure(StateAnnotating).
		PermitIf(TriggerSubmit, StateReviewing, facts.heldByActorOrFree)

	builder.Configure(StateReviewing).
		Permit(TriggerApprove, StateCompleted).
		Permit(TriggerReject, StateRejected)

	// Re-claiming a rejected task hands it to the claimer; direct resubmission stays with the last owner.
	builder.Configure(StateRejected).
		Permit(TriggerClaim, StateAnnotating).
		PermitIf(TriggerSubmit, StateReviewing, facts.heldByActorOrFree)

	return builder.Build(state)
}
