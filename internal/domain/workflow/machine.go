package workflow

import (
	"context"
	"fmt"
)

// StateMachine represents a state machine that tracks current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger
}

// NewRequestMachine returns a machine for a request in the given state.
// pending is the only non-terminal state.
func NewRequestMachine(initial State) StateMachine {
	b := NewBuilder(RequestStates...)
	b.Configure(StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerWithdraw, StateWithdrawn).
		Permit(TriggerVoid, StateVoided)
	return b.Build(initial)
}

// NewTaskMachine returns a machine for a task in the given state.
func NewTaskMachine(initial State) StateMachine {
	b := NewBuilder(TaskStates...)
	b.Configure(StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerSupersede, StateSuperseded)
	return b.Build(initial)
}

// TransitionRequest fires trigger on a request machine in state current
// and returns the resulting state.
func TransitionRequest(ctx context.Context, current string, trigger Trigger) (State, error) {
	return fire(ctx, RequestStates, NewRequestMachine, current, trigger)
}

// TransitionTask fires trigger on a task machine in state current
// and returns the resulting state.
func TransitionTask(ctx context.Context, current string, trigger Trigger) (State, error) {
	return fire(ctx, TaskStates, NewTaskMachine, current, trigger)
}

func fire(ctx context.Context, states []State, newMachine func(State) StateMachine, current string, trigger Trigger) (State, error) {
	state := State(current)
	if !contains(states, state) {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, current)
	}
	m := newMachine(state)
	if err := m.Fire(ctx, trigger); err != nil {
		return "", err
	}
	return m.State(), nil
}

func contains(states []State, s State) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}
