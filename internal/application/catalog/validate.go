package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/garyjia/oa-approval/internal/application/assignee"
	"github.com/garyjia/oa-approval/internal/application/condition"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

// Normalize trims identifiers, fills scope and condition defaults and orders steps.
func Normalize(def *entity.WorkflowDefinition) {
	def.Key = strings.TrimSpace(def.Key)
	def.RequestType = strings.TrimSpace(def.RequestType)
	def.Category = strings.TrimSpace(def.Category)
	def.ScopeKind = strings.TrimSpace(def.ScopeKind)
	def.ScopeValue = strings.TrimSpace(def.ScopeValue)
	if def.ScopeKind == "" {
		def.ScopeKind = entity.ScopeGlobal
	}
	if def.ScopeKind == entity.ScopeGlobal {
		def.ScopeValue = ""
	}
	if def.Name == "" {
		def.Name = def.Key
	}

	for i := range def.Steps {
		s := &def.Steps[i]
		s.StepKey = strings.TrimSpace(s.StepKey)
		s.AssigneeKind = strings.TrimSpace(s.AssigneeKind)
		s.AssigneeValue = strings.TrimSpace(s.AssigneeValue)
		s.ConditionKind = strings.TrimSpace(s.ConditionKind)
		s.ConditionValue = strings.TrimSpace(s.ConditionValue)
		if s.ConditionKind == "" {
			s.ConditionKind = entity.ConditionNone
		}
		if s.ConditionKind == entity.ConditionNone {
			s.ConditionValue = ""
		}
		if s.AssigneeKind == entity.AssigneeManager {
			s.AssigneeValue = ""
		}
	}
	sort.SliceStable(def.Steps, func(i, j int) bool {
		return def.Steps[i].StepOrder < def.Steps[j].StepOrder
	})
}

// Validate checks a normalized definition in isolation. Default uniqueness
// needs the stored catalog and is checked by Upsert.
func Validate(def *entity.WorkflowDefinition) error {
	if def.Key == "" {
		return invalid("key is required")
	}
	if def.RequestType == "" {
		return invalid("request_type is required")
	}

	switch def.ScopeKind {
	case entity.ScopeGlobal:
	case entity.ScopeDept:
		if def.ScopeValue == "" {
			return invalid("scope_value is required for dept scope")
		}
	default:
		return invalid("scope_kind %q must be global or dept", def.ScopeKind)
	}

	if len(def.Steps) == 0 {
		return invalid("at least one step is required")
	}

	for i, step := range def.Steps {
		if step.StepOrder != i+1 {
			return invalid("step_order must be contiguous from 1: position %d has step_order %d", i+1, step.StepOrder)
		}
		if step.AssigneeKind == "" {
			return invalid("step %d: assignee_kind is required", step.StepOrder)
		}
		if !entity.IsValidAssigneeKind(step.AssigneeKind) {
			return invalid("step %d: unknown assignee_kind %q", step.StepOrder, step.AssigneeKind)
		}
		if err := assignee.ValidateValue(step.AssigneeKind, step.AssigneeValue); err != nil {
			return invalid("step %d: %v", step.StepOrder, err)
		}
		if !entity.IsValidConditionKind(step.ConditionKind) {
			return invalid("step %d: unknown condition_kind %q", step.StepOrder, step.ConditionKind)
		}
		if err := condition.Validate(step.ConditionKind, step.ConditionValue); err != nil {
			return invalid("step %d: %v", step.StepOrder, err)
		}
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domainwf.ErrInvalidDefinition, fmt.Sprintf(format, args...))
}
