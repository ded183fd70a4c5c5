package condition

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/garyjia/oa-approval/internal/domain/entity"
)

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		value   string
		input   Input
		want    bool
		wantErr bool
	}{
		{name: "empty kind", kind: "", want: true},
		{name: "none", kind: entity.ConditionNone, want: true},

		{name: "min_amount above", kind: entity.ConditionMinAmount, value: "1000", input: Input{Payload: map[string]interface{}{"amount": 5000.0}}, want: true},
		{name: "min_amount inclusive", kind: entity.ConditionMinAmount, value: "1000", input: Input{Payload: map[string]interface{}{"amount": 1000}}, want: true},
		{name: "min_amount below", kind: entity.ConditionMinAmount, value: "1000", input: Input{Payload: map[string]interface{}{"amount": 500.0}}, want: false},
		{name: "min_amount numeric string", kind: entity.ConditionMinAmount, value: "1000", input: Input{Payload: map[string]interface{}{"amount": " 1500 "}}, want: true},
		{name: "min_amount json number", kind: entity.ConditionMinAmount, value: "10", input: Input{Payload: map[string]interface{}{"amount": json.Number("12.5")}}, want: true},
		{name: "min_amount missing", kind: entity.ConditionMinAmount, value: "1000", input: Input{Payload: map[string]interface{}{}}, want: false, wantErr: true},
		{name: "min_amount nil payload", kind: entity.ConditionMinAmount, value: "1000", want: false, wantErr: true},
		{name: "min_amount not numeric", kind: entity.ConditionMinAmount, value: "1000", input: Input{Payload: map[string]interface{}{"amount": "lots"}}, want: false, wantErr: true},

		{name: "max_amount below", kind: entity.ConditionMaxAmount, value: "1000", input: Input{Payload: map[string]interface{}{"amount": 999.99}}, want: true},
		{name: "max_amount inclusive", kind: entity.ConditionMaxAmount, value: "1000", input: Input{Payload: map[string]interface{}{"amount": 1000.0}}, want: true},
		{name: "max_amount above", kind: entity.ConditionMaxAmount, value: "1000", input: Input{Payload: map[string]interface{}{"amount": 1000.01}}, want: false},
		{name: "max_amount missing never blocks", kind: entity.ConditionMaxAmount, value: "1000", input: Input{Payload: map[string]interface{}{}}, want: true},

		{name: "min_days met", kind: entity.ConditionMinDays, value: "3", input: Input{Payload: map[string]interface{}{"days": 3}}, want: true},
		{name: "min_days short", kind: entity.ConditionMinDays, value: "3", input: Input{Payload: map[string]interface{}{"days": 2.0}}, want: false},
		{name: "min_days missing", kind: entity.ConditionMinDays, value: "3", input: Input{Payload: map[string]interface{}{"amount": 3}}, want: false, wantErr: true},

		{name: "dept_in match", kind: entity.ConditionDeptIn, value: "Sales, Finance", input: Input{OwnerDepartment: "Finance"}, want: true},
		{name: "dept_in semicolons", kind: entity.ConditionDeptIn, value: "Sales;Finance", input: Input{OwnerDepartment: "Sales"}, want: true},
		{name: "dept_in case sensitive", kind: entity.ConditionDeptIn, value: "Sales,Finance", input: Input{OwnerDepartment: "finance"}, want: false},
		{name: "dept_in no department", kind: entity.ConditionDeptIn, value: "Sales", want: false, wantErr: true},

		{name: "category_in match", kind: entity.ConditionCategoryIn, value: "travel,hardware", input: Input{Payload: map[string]interface{}{"category": "hardware"}}, want: true},
		{name: "category_in miss", kind: entity.ConditionCategoryIn, value: "travel,hardware", input: Input{Payload: map[string]interface{}{"category": "meals"}}, want: false},
		{name: "category_in missing", kind: entity.ConditionCategoryIn, value: "travel", input: Input{Payload: map[string]interface{}{}}, want: false, wantErr: true},

		{name: "malformed threshold keeps step", kind: entity.ConditionMinAmount, value: "ten", input: Input{Payload: map[string]interface{}{"amount": 5.0}}, want: true, wantErr: true},
		{name: "unknown kind keeps step", kind: "weekday_in", value: "mon", want: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.kind, tt.value, tt.input)
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("Evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEvaluator_LogsDiagnostics(t *testing.T) {
	logger := &recordingLogger{}
	e := NewEvaluator(logger)

	step := entity.StepDefinition{StepOrder: 2, StepKey: "finance", ConditionKind: entity.ConditionMinAmount, ConditionValue: "1000"}

	if e.Applies(step, Input{Payload: map[string]interface{}{"amount": "n/a"}}) {
		t.Error("Applies() = true for non-numeric amount, want false")
	}
	if len(logger.warns) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(logger.warns))
	}

	if !e.Applies(step, Input{Payload: map[string]interface{}{"amount": 2000}}) {
		t.Error("Applies() = false for amount above threshold")
	}
	if len(logger.warns) != 1 {
		t.Errorf("well-formed input must not log, got %d diagnostics", len(logger.warns))
	}
}

func TestEvaluator_NilLogger(t *testing.T) {
	e := NewEvaluator(nil)
	step := entity.StepDefinition{ConditionKind: entity.ConditionMinDays, ConditionValue: "2"}
	if e.Applies(step, Input{}) {
		t.Error("Applies() = true with no payload, want false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		kind    string
		value   string
		wantErr bool
	}{
		{entity.ConditionNone, "", false},
		{"", "ignored", false},
		{entity.ConditionMinAmount, "1000", false},
		{entity.ConditionMaxAmount, "12.5", false},
		{entity.ConditionMinDays, "abc", true},
		{entity.ConditionMinAmount, "", true},
		{entity.ConditionDeptIn, "Sales", false},
		{entity.ConditionCategoryIn, " , ;", true},
		{"bogus", "1", true},
	}

	for _, tt := range tests {
		err := Validate(tt.kind, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q, %q) error = %v, wantErr %v", tt.kind, tt.value, err, tt.wantErr)
		}
	}
}

func TestSplitSet(t *testing.T) {
	set := SplitSet(" a, b;c ,, ")
	if len(set) != 3 || !set["a"] || !set["b"] || !set["c"] {
		t.Errorf("SplitSet() = %v, want {a b c}", set)
	}
}
