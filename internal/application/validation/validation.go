// Package validation validates application commands at the service boundary.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator checks command structs and reports failures as ValidationError
type Validator struct {
	v *validator.Validate
}

// New creates a Validator using JSON field names and numeric rules for decimals
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	Configure(v)
	return &Validator{v: v}
}

// Configure registers the tag name function and decimal support on v.
// It is shared with the HTTP binding engine.
func Configure(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// Struct validates s
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.NewValidationError("invalid input: %v", err)
	}
	details := make(map[string]any, len(fieldErrs))
	first := ""
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), topLevel(fe.Namespace()))
		if field == "" {
			field = fe.Field()
		}
		msg := Message(fe)
		details[field] = msg
		if first == "" {
			first = field + ": " + msg
		}
	}
	return &shared.DomainError{
		Code:    shared.CodeValidation,
		Message: "Invalid input: " + first,
		Details: details,
	}
}

// topLevel returns the struct name prefix of a namespace, including the dot
func topLevel(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[:i+1]
	}
	return ""
}

// Message returns a human-readable validation message
func Message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Type().Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	default:
		return "Invalid value"
	}
}
