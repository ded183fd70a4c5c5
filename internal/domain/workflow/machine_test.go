package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateApproved, true},
		{StateRejected, true},
		{StateWithdrawn, true},
		{StateVoided, true},
		{StateSuperseded, true},
		{State("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"pending", StatePending, true},
		{"voided", StateVoided, true},
		{"uppercase", State("PENDING"), false},
		{"empty", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuilder_RestrictsStates(t *testing.T) {
	builder := NewBuilder(TaskStates...)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when configuring a state outside the builder's set")
		}
	}()

	builder.Configure(StateWithdrawn)
}

func TestBuilder_BuildIsIsolated(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).Permit(TriggerApprove, StateApproved)

	m := builder.Build(StatePending)

	// Later configuration must not leak into machines already built
	builder.Configure(StatePending).Permit(TriggerReject, StateRejected)

	if m.CanFire(TriggerReject) {
		t.Error("machine picked up a transition configured after Build")
	}
	if !m.CanFire(TriggerApprove) {
		t.Error("machine lost a transition configured before Build")
	}
}

func TestStateMachine_Guards(t *testing.T) {
	allow := false
	builder := NewBuilder()
	builder.Configure(StatePending).
		PermitIf(TriggerApprove, StateApproved, func(ctx context.Context) bool { return allow })

	m := builder.Build(StatePending)
	err := m.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire() error = %v, want ErrGuardFailed", err)
	}
	if m.State() != StatePending {
		t.Errorf("state changed despite failed guard: %s", m.State())
	}

	allow = true
	if err := m.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if m.State() != StateApproved {
		t.Errorf("State() = %s, want approved", m.State())
	}
}

func TestRequestMachine(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		trigger Trigger
		want    State
		wantErr bool
	}{
		{"approve pending", StatePending, TriggerApprove, StateApproved, false},
		{"reject pending", StatePending, TriggerReject, StateRejected, false},
		{"withdraw pending", StatePending, TriggerWithdraw, StateWithdrawn, false},
		{"void pending", StatePending, TriggerVoid, StateVoided, false},
		{"supersede is not a request trigger", StatePending, TriggerSupersede, "", true},
		{"approved is terminal", StateApproved, TriggerReject, "", true},
		{"rejected is terminal", StateRejected, TriggerApprove, "", true},
		{"withdrawn is terminal", StateWithdrawn, TriggerVoid, "", true},
		{"voided is terminal", StateVoided, TriggerWithdraw, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TransitionRequest(context.Background(), tt.from.String(), tt.trigger)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("TransitionRequest() error = %v, want ErrInvalidTransition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("TransitionRequest() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("TransitionRequest() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTaskMachine(t *testing.T) {
	for _, trigger := range []Trigger{TriggerApprove, TriggerReject, TriggerSupersede} {
		t.Run(fmt.Sprintf("pending/%s", trigger), func(t *testing.T) {
			got, err := TransitionTask(context.Background(), "pending", trigger)
			if err != nil {
				t.Fatalf("TransitionTask() error = %v", err)
			}
			if !got.IsTerminal() {
				t.Errorf("TransitionTask() = %s, want a terminal state", got)
			}
		})
	}

	for _, from := range []State{StateApproved, StateRejected, StateSuperseded} {
		t.Run(fmt.Sprintf("%s/approve", from), func(t *testing.T) {
			_, err := TransitionTask(context.Background(), from.String(), TriggerApprove)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("TransitionTask() error = %v, want ErrInvalidTransition", err)
			}
		})
	}

	t.Run("withdrawn is not a task state", func(t *testing.T) {
		_, err := TransitionTask(context.Background(), "withdrawn", TriggerApprove)
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("TransitionTask() error = %v, want ErrInvalidState", err)
		}
	})
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	m := NewRequestMachine(StatePending)
	if got := len(m.PermittedTriggers()); got != 4 {
		t.Errorf("PermittedTriggers() returned %d triggers, want 4", got)
	}

	terminal := NewRequestMachine(StateApproved)
	if got := len(terminal.PermittedTriggers()); got != 0 {
		t.Errorf("terminal PermittedTriggers() returned %d triggers, want 0", got)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, CodeNotFound},
		{fmt.Errorf("task 4: %w", ErrAlreadyDecided), CodeAlreadyDecided},
		{fmt.Errorf("%w: step_order must start at 1", ErrInvalidDefinition), CodeInvalidDefinition},
		{fmt.Errorf("fire: %w", ErrInvalidTransition), CodeAlreadyDecided},
		{ErrNoManagerConfigured, CodeNoManagerConfigured},
		{fmt.Errorf("directory: %w", ErrInfrastructure), CodeInfrastructure},
		{errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(fmt.Errorf("x: %w", ErrInvalidPayload)) {
		t.Error("invalid payload should be a validation error")
	}
	if IsValidation(ErrNotAuthorized) {
		t.Error("not authorized is not a validation error")
	}
}
