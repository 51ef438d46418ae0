package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/kbukum/beankit/errors"
)

// Validator collects field errors for checks struct tags cannot express,
// such as rules spanning several fields.
type Validator struct {
	errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns an INVALID_CONFIG error listing every field error, or nil.
func (v *Validator) Validate() error {
	if !v.HasErrors() {
		return nil
	}
	return fieldsError(v.errors)
}

// Merge appends the field errors carried by err, prefixing their fields.
// Other errors are recorded against prefix itself.
func (v *Validator) Merge(prefix string, err error) *Validator {
	if err == nil {
		return v
	}
	be, ok := errors.AsBeanError(err)
	fields, _ := detailFields(be, ok)
	if len(fields) == 0 {
		v.AddError(prefix, err.Error())
		return v
	}
	for _, fe := range fields {
		v.AddError(joinField(prefix, fe.Field), fe.Message)
	}
	return v
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// BeanName checks that value can name a managed object.
func (v *Validator) BeanName(field, value string) *Validator {
	if value == "" {
		return v
	}
	if msg := beanNameProblem(value); msg != "" {
		v.AddError(field, msg)
	}
	return v
}

// Min checks if a number meets minimum value.
func (v *Validator) Min(field string, value, minVal int) *Validator {
	if value < minVal {
		v.AddError(field, fmt.Sprintf("must be at least %d", minVal))
	}
	return v
}

// Range checks if a number is within a range.
func (v *Validator) Range(field string, value, minVal, maxVal float64) *Validator {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("must be between %g and %g", minVal, maxVal))
	}
	return v
}

// Pattern checks if a string matches a regex pattern.
func (v *Validator) Pattern(field, value, pattern string) *Validator {
	if value == "" {
		return v
	}
	matched, err := regexp.MatchString(pattern, value)
	if err != nil || !matched {
		v.AddError(field, "does not match required format")
	}
	return v
}

// OneOf checks if a value is one of the allowed values.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// ExactlyOne checks that exactly one of the named alternatives is set.
func (v *Validator) ExactlyOne(field string, alternatives map[string]bool) *Validator {
	set := 0
	names := make([]string, 0, len(alternatives))
	for name, ok := range alternatives {
		names = append(names, name)
		if ok {
			set++
		}
	}
	if set != 1 {
		slices.Sort(names)
		v.AddError(field, "requires exactly one of: "+strings.Join(names, ", "))
	}
	return v
}

// Custom applies a custom validation condition.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}

// Required validates a single required field and returns an error if empty.
func Required(field, value string) error {
	return New().Required(field, value).Validate()
}

func fieldsError(fields []FieldError) error {
	messages := make([]string, len(fields))
	for i, e := range fields {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return errors.InvalidConfig(strings.Join(messages, "; ")).WithDetail("fields", fields)
}

func detailFields(be *errors.BeanError, ok bool) ([]FieldError, bool) {
	if !ok || be.Details == nil {
		return nil, false
	}
	fields, ok := be.Details["fields"].([]FieldError)
	return fields, ok
}

// FieldErrors returns the field errors carried by an error from Validate.
func FieldErrors(err error) []FieldError {
	be, ok := errors.AsBeanError(err)
	fields, _ := detailFields(be, ok)
	return fields
}

func joinField(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	}
	return prefix + "." + field
}
