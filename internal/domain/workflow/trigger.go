package workflow

// Trigger represents an action that can cause a state transition
type Trigger string

const (
	TriggerApprove   Trigger = "approve"
	TriggerReject    Trigger = "reject"
	TriggerWithdraw  Trigger = "withdraw"
	TriggerVoid      Trigger = "void"
	TriggerSupersede Trigger = "supersede"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
