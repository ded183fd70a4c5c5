// Package condition decides whether a workflow step applies to a request.
package condition

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/garyjia/oa-approval/internal/domain/entity"
)

// Payload fields read by conditions
const (
	FieldAmount   = "amount"
	FieldDays     = "days"
	FieldCategory = "category"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Warn(msg string, keysAndValues ...interface{})
}

// Input is what a condition is scored against.
type Input struct {
	Payload         map[string]interface{}
	OwnerDepartment string
}

// Evaluate scores a condition. The returned error is a diagnostic only: the
// boolean is always the decision. Missing or malformed payload fields score
// false (max_amount excepted); a malformed threshold or unknown kind scores
// true so a broken definition never silently drops an approval step.
func Evaluate(kind, value string, in Input) (bool, error) {
	switch kind {
	case "", entity.ConditionNone:
		return true, nil

	case entity.ConditionMinAmount:
		threshold, err := parseThreshold(value)
		if err != nil {
			return true, err
		}
		amount, ok := Number(in.Payload, FieldAmount)
		if !ok {
			return false, fmt.Errorf("payload field %q missing or not numeric", FieldAmount)
		}
		return amount >= threshold, nil

	case entity.ConditionMaxAmount:
		threshold, err := parseThreshold(value)
		if err != nil {
			return true, err
		}
		amount, ok := Number(in.Payload, FieldAmount)
		if !ok {
			// no amount means no cap to exceed
			return true, nil
		}
		return amount <= threshold, nil

	case entity.ConditionMinDays:
		threshold, err := parseThreshold(value)
		if err != nil {
			return true, err
		}
		days, ok := Number(in.Payload, FieldDays)
		if !ok {
			return false, fmt.Errorf("payload field %q missing or not numeric", FieldDays)
		}
		return days >= threshold, nil

	case entity.ConditionDeptIn:
		if in.OwnerDepartment == "" {
			return false, fmt.Errorf("owner has no department")
		}
		return SplitSet(value)[in.OwnerDepartment], nil

	case entity.ConditionCategoryIn:
		category, ok := in.Payload[FieldCategory].(string)
		if !ok || category == "" {
			return false, fmt.Errorf("payload field %q missing", FieldCategory)
		}
		return SplitSet(value)[category], nil

	default:
		return true, fmt.Errorf("unknown condition kind %q", kind)
	}
}

// Validate checks that a condition value is well-typed for its kind.
func Validate(kind, value string) error {
	switch kind {
	case "", entity.ConditionNone:
		return nil
	case entity.ConditionMinAmount, entity.ConditionMaxAmount, entity.ConditionMinDays:
		_, err := parseThreshold(value)
		return err
	case entity.ConditionDeptIn, entity.ConditionCategoryIn:
		if len(SplitSet(value)) == 0 {
			return fmt.Errorf("condition %s needs at least one value", kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown condition kind %q", kind)
	}
}

// Evaluator wraps Evaluate with diagnostics logging.
type Evaluator struct {
	logger Logger
}

// NewEvaluator creates an Evaluator. logger may be nil.
func NewEvaluator(logger Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Applies reports whether step should be activated for the request.
func (e *Evaluator) Applies(step entity.StepDefinition, in Input) bool {
	ok, err := Evaluate(step.ConditionKind, step.ConditionValue, in)
	if err != nil && e.logger != nil {
		e.logger.Warn("Condition input malformed",
			"step_order", step.StepOrder,
			"step_key", step.StepKey,
			"condition_kind", step.ConditionKind,
			"condition_value", step.ConditionValue,
			"applies", ok,
			"error", err.Error(),
		)
	}
	return ok
}

// SplitSet splits a comma or semicolon separated list into a set of trimmed items.
func SplitSet(value string) map[string]bool {
	set := make(map[string]bool)
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' }) {
		if item := strings.TrimSpace(part); item != "" {
			set[item] = true
		}
	}
	return set
}

// Number reads a numeric payload field. JSON numbers and numeric strings are accepted.
func Number(payload map[string]interface{}, key string) (float64, bool) {
	raw, ok := payload[key]
	if !ok || raw == nil {
		return 0, false
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseThreshold(value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("threshold %q is not a number", value)
	}
	return f, nil
}
