package entity

import "time"

// WorkflowDefinition is a named approval chain for a request type and scope.
// Definitions are versionless: requests copy the step list at creation,
// so edits only affect requests created afterwards.
type WorkflowDefinition struct {
	Key         string           `json:"key" yaml:"key"`
	Name        string           `json:"name" yaml:"name"`
	RequestType string           `json:"request_type" yaml:"request_type"`
	Category    string           `json:"category" yaml:"category"`
	ScopeKind   string           `json:"scope_kind" yaml:"scope_kind"`
	ScopeValue  string           `json:"scope_value,omitempty" yaml:"scope_value"`
	Enabled     bool             `json:"enabled" yaml:"enabled"`
	IsDefault   bool             `json:"is_default" yaml:"is_default"`
	Steps       []StepDefinition `json:"steps" yaml:"steps"`
	CreatedAt   time.Time        `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time        `json:"updated_at" yaml:"-"`
}

// StepDefinition is one position in a workflow chain.
type StepDefinition struct {
	StepOrder      int    `json:"step_order" yaml:"step_order"`
	StepKey        string `json:"step_key" yaml:"step_key"`
	AssigneeKind   string `json:"assignee_kind" yaml:"assignee_kind"`
	AssigneeValue  string `json:"assignee_value,omitempty" yaml:"assignee_value"`
	ConditionKind  string `json:"condition_kind,omitempty" yaml:"condition_kind"`
	ConditionValue string `json:"condition_value,omitempty" yaml:"condition_value"`
}

// AppliesTo reports whether the definition may serve the given department.
func (w *WorkflowDefinition) AppliesTo(department string) bool {
	if w.ScopeKind == ScopeDept {
		return w.ScopeValue == department
	}
	return true
}

// SameScope reports whether two definitions compete for the same default slot.
func (w *WorkflowDefinition) SameScope(other *WorkflowDefinition) bool {
	if w.RequestType != other.RequestType || w.ScopeKind != other.ScopeKind {
		return false
	}
	return w.ScopeKind != ScopeDept || w.ScopeValue == other.ScopeValue
}

// Step returns the step with the given order, or nil.
func (w *WorkflowDefinition) Step(order int) *StepDefinition {
	for i := range w.Steps {
		if w.Steps[i].StepOrder == order {
			return &w.Steps[i]
		}
	}
	return nil
}

// WorkflowFilter narrows ListWorkflows results.
type WorkflowFilter struct {
	RequestType string `form:"request_type"`
	Category    string `form:"category"`
	Department  string `form:"department"`
	EnabledOnly bool   `form:"enabled_only"`
}
