package utils

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// PayloadSchemas are validator rules per request type. Types without an entry
// are accepted as opaque payloads.
var PayloadSchemas = map[string]map[string]interface{}{
	"expense": {
		"amount":   "required,gt=0",
		"category": "omitempty,max=64",
	},
	"loan": {
		"amount": "required,gt=0",
	},
	"payment": {
		"amount": "required,gt=0",
		"payee":  "omitempty,max=128",
	},
	"leave": {
		"days":       "required,gt=0",
		"start_date": "omitempty,datetime=2006-01-02",
		"end_date":   "omitempty,datetime=2006-01-02",
	},
	"overtime": {
		"hours": "required,gt=0",
	},
}

// numericFields are coerced to float64 before validation so numeric strings
// from form posts compare by value rather than by length.
var numericFields = map[string]bool{
	"amount": true,
	"days":   true,
	"hours":  true,
}

// PayloadValidator checks request payloads against PayloadSchemas
type PayloadValidator struct {
	validate *validator.Validate
	schemas  map[string]map[string]interface{}
}

// NewPayloadValidator creates a validator with the built-in schemas
func NewPayloadValidator() *PayloadValidator {
	return &PayloadValidator{
		validate: validator.New(),
		schemas:  PayloadSchemas,
	}
}

// Validate returns a readable error listing every failing field, or nil.
// "required" is checked on presence alone so a zero value reaches the
// remaining rules and reports their message.
func (v *PayloadValidator) Validate(requestType string, payload map[string]interface{}) error {
	schema, ok := v.schemas[requestType]
	if !ok {
		return nil
	}

	problems := make(map[string]string)
	data := make(map[string]interface{}, len(schema))
	rules := make(map[string]interface{}, len(schema))
	for field, rule := range schema {
		required, rest := splitRequired(fmt.Sprint(rule))
		value, present := payload[field]
		if !present || value == nil {
			if required {
				problems[field] = "is required"
			}
			continue
		}
		if numericFields[field] {
			if s, isString := value.(string); isString {
				f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err != nil {
					return fmt.Errorf("field %s: %q is not a number", field, s)
				}
				value = f
			}
		}
		if rest == "" {
			continue
		}
		data[field] = value
		rules[field] = rest
	}

	for field, failure := range v.validate.ValidateMap(data, rules) {
		problems[field] = describe(failure)
	}
	if len(problems) == 0 {
		return nil
	}

	fields := make([]string, 0, len(problems))
	for field := range problems {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, fmt.Sprintf("field %s: %s", field, problems[field]))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// splitRequired removes the "required" tag from a rule string.
func splitRequired(rule string) (bool, string) {
	required := false
	tags := make([]string, 0, 2)
	for _, tag := range strings.Split(rule, ",") {
		switch tag = strings.TrimSpace(tag); tag {
		case "required":
			required = true
		case "":
		default:
			tags = append(tags, tag)
		}
	}
	return required, strings.Join(tags, ",")
}

func describe(failure interface{}) string {
	errs, ok := failure.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return fmt.Sprint(failure)
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "datetime":
		return "must be a date formatted " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// SanitizeString strips control characters other than tab and newlines and trims spaces
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
