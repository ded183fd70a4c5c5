package event

// Type identifies the type of request event
type Type string

const (
	TypeCreated         Type = "created"
	TypeTaskCreated     Type = "task_created"
	TypeTaskDecided     Type = "task_decided"
	TypeRequestApproved Type = "request_approved"
	TypeRequestRejected Type = "request_rejected"
	TypeWithdrawn       Type = "withdrawn"
	TypeVoided          Type = "voided"
)

// AllTypes lists every event type in lifecycle order
var AllTypes = []Type{
	TypeCreated,
	TypeTaskCreated,
	TypeTaskDecided,
	TypeRequestApproved,
	TypeRequestRejected,
	TypeWithdrawn,
	TypeVoided,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeCreated,
		TypeTaskCreated,
		TypeTaskDecided,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeWithdrawn,
		TypeVoided:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the event records the end of a request
func (t Type) IsTerminal() bool {
	switch t {
	case TypeRequestApproved, TypeRequestRejected, TypeWithdrawn, TypeVoided:
		return true
	default:
		return false
	}
}
