package workflow

// State represents a request or task status in the approval lifecycle
type State string

const (
	StatePending    State = "pending"
	StateApproved   State = "approved"
	StateRejected   State = "rejected"
	StateWithdrawn  State = "withdrawn"
	StateVoided     State = "voided"
	StateSuperseded State = "superseded"
)

// RequestStates are the states a request machine may hold
var RequestStates = []State{StatePending, StateApproved, StateRejected, StateWithdrawn, StateVoided}

// TaskStates are the states a task machine may hold
var TaskStates = []State{StatePending, StateApproved, StateRejected, StateSuperseded}

var validStates = map[State]bool{
	StatePending:    true,
	StateApproved:   true,
	StateRejected:   true,
	StateWithdrawn:  true,
	StateVoided:     true,
	StateSuperseded: true,
}

// IsTerminal returns true if no further transitions are allowed from the state.
// Every state except pending is terminal for both requests and tasks.
func (s State) IsTerminal() bool {
	return s.IsValid() && s != StatePending
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
