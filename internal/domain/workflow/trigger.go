package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerClaim   Trigger = "CLAIM"
	TriggerAssign  Trigger = "ASSIGN"
	TriggerSubmit  Trigger = "SUBMIT"
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
