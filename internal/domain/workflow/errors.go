package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")
)

// Business errors surfaced to callers. Each maps to a stable code.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrInvalidDefinition    = errors.New("invalid workflow definition")
	ErrInvalidDecision      = errors.New("invalid decision")
	ErrNoApplicableWorkflow = errors.New("no applicable workflow")
	ErrInUse                = errors.New("workflow in use")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrNotOwner             = errors.New("not the request owner")
	ErrAlreadyDecided       = errors.New("already decided")
	ErrNoManagerConfigured  = errors.New("no manager configured")
	ErrInfrastructure       = errors.New("infrastructure unavailable")
)

// Stable error codes
const (
	CodeNotFound             = "not_found"
	CodeInvalidPayload       = "invalid_payload"
	CodeInvalidDefinition    = "invalid_definition"
	CodeInvalidDecision      = "invalid_decision"
	CodeNoApplicableWorkflow = "no_applicable_workflow"
	CodeInUse                = "in_use"
	CodeNotAuthorized        = "not_authorized"
	CodeNotOwner             = "not_owner"
	CodeAlreadyDecided       = "already_decided"
	CodeNoManagerConfigured  = "no_manager_configured"
	CodeInfrastructure       = "infrastructure_unavailable"
	CodeInternal             = "internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, CodeNotFound},
	{ErrInvalidPayload, CodeInvalidPayload},
	{ErrInvalidDefinition, CodeInvalidDefinition},
	{ErrInvalidDecision, CodeInvalidDecision},
	{ErrNoApplicableWorkflow, CodeNoApplicableWorkflow},
	{ErrInUse, CodeInUse},
	{ErrNotAuthorized, CodeNotAuthorized},
	{ErrNotOwner, CodeNotOwner},
	{ErrAlreadyDecided, CodeAlreadyDecided},
	{ErrNoManagerConfigured, CodeNoManagerConfigured},
	{ErrInfrastructure, CodeInfrastructure},
	{ErrInvalidTransition, CodeAlreadyDecided},
}

// ErrorCode maps an error chain to its stable code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// IsValidation reports whether err is a caller input problem.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrInvalidDefinition) ||
		errors.Is(err, ErrInvalidDecision)
}
