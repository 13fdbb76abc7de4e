package workflow

import (
	"errors"

	"github.com/garyjia/image-annotation/internal/domain/apperr"
	domainwf "github.com/garyjia/image-annotation/internal/domain/workflow"
)

// refusal maps a state machine refusal of one trigger onto the error taxonomy
type refusal struct {
	// byState gives the kind when the trigger is not permitted from the current state
	byState map[domainwf.State]apperr.Kind

	// otherState is used for states missing from byState
	otherState apperr.Kind

	// guard is used when the transition exists but its guard failed
	guard apperr.Kind

	message string
}

var refusals = map[domainwf.Trigger]refusal{
	domainwf.TriggerClaim: {
		byState: map[domainwf.State]apperr.Kind{
			domainwf.StateAnnotating: apperr.KindConflict,
			domainwf.StateReviewing:  apperr.KindConflict,
			domainwf.StateCompleted:  apperr.KindNotFound,
		},
		otherState: apperr.KindNotFound,
		guard:      apperr.KindConflict,
		message:    "task %d is not available to claim (status %s)",
	},
	domainwf.TriggerSubmit: {
		byState: map[domainwf.State]apperr.Kind{
			domainwf.StateReviewing: apperr.KindConflict,
			domainwf.StateCompleted: apperr.KindNotFound,
		},
		otherState: apperr.KindNotFound,
		guard:      apperr.KindForbidden,
		message:    "task %d does not accept an annotation from this user (status %s)",
	},
	domainwf.TriggerApprove: decided,
	domainwf.TriggerReject:  decided,
	domainwf.TriggerAssign: {
		otherState: apperr.KindConflict,
		guard:      apperr.KindConflict,
		message:    "task %d can only be assigned while pending (status %s)",
	},
}

var decided = refusal{
	byState: map[domainwf.State]apperr.Kind{
		domainwf.StateCompleted: apperr.KindConflict,
		domainwf.StateRejected:  apperr.KindConflict,
	},
	otherState: apperr.KindNotFound,
	guard:      apperr.KindConflict,
	message:    "task %d is not awaiting review (status %s)",
}

// refuse converts the error returned by StateMachine.Fire
func refuse(trigger domainwf.Trigger, taskID int64, from domainwf.State, fireErr error) error {
	r, ok := refusals[trigger]
	if !ok {
		return fireErr
	}

	kind := r.otherState
	if errors.Is(fireErr, domainwf.ErrGuardFailed) {
		kind = r.guard
	} else if k, ok := r.byState[from]; ok {
		kind = k
	}

	return build(kind, r.message, taskID, from)
}

func build(kind apperr.Kind, format string, args ...interface{}) error {
	switch kind {
	case apperr.KindNotFound:
		return apperr.NotFound(format, args...)
	case apperr.KindConflict:
		return apperr.Conflict(format, args...)
	case apperr.KindForbidden:
		return apperr.Forbidden(format, args...)
	default:
		return apperr.Invalid(format, args...)
	}
}
