package event

// Type identifies the type of lifecycle event
type Type string

const (
	TypeTaskCreated         Type = "task.created"
	TypeTaskClaimed         Type = "task.claimed"
	TypeTaskAssigned        Type = "task.assigned"
	TypeTaskDeleted         Type = "task.deleted"
	TypeAnnotationSubmitted Type = "annotation.submitted"
	TypeReviewApproved      Type = "review.approved"
	TypeReviewRejected      Type = "review.rejected"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeTaskCreated,
		TypeTaskClaimed,
		TypeTaskAssigned,
		TypeTaskDeleted,
		TypeAnnotationSubmitted,
		TypeReviewApproved,
		TypeReviewRejected:
		return true
	default:
		return false
	}
}

// AllTypes returns every lifecycle event type
func AllTypes() []Type {
	return []Type{
		TypeTaskCreated,
		TypeTaskClaimed,
		TypeTaskAssigned,
		TypeTaskDeleted,
		TypeAnnotationSubmitted,
		TypeReviewApproved,
		TypeReviewRejected,
	}
}
