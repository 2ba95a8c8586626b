// Package validx checks caller input before it reaches the network.
package validx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/aussiebroadwan/trustkit/pkg/apierr"
	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

// v is the package-level singleton validator. Custom rules are registered
// once at package load.
var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their wire name.
	val.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	if err := val.RegisterValidation("phone", isPhone); err != nil {
		panic(fmt.Sprintf("validx: register phone rule: %v", err))
	}
	return val
}

// isPhone accepts numbers libphonenumber considers valid. Numbers without a
// leading + are not accepted since no default region is known.
func isPhone(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if !strings.HasPrefix(raw, "+") {
		return false
	}
	num, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// Struct validates s using its validate tags. Failures are returned as a
// VALIDATION *apierr.Error whose details map each failing field to the rule
// it broke.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apierr.ErrInvalidFormat.WithDetails(map[string]any{"reason": err.Error()})
	}
	return fromValidationErrors(ve)
}

// Var validates a single value against tag. name is used in the error
// details.
func Var(name string, value any, tag string) error {
	err := v.Var(value, tag)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apierr.ErrInvalidFormat.WithDetails(map[string]any{"reason": err.Error()})
	}

	code := apierr.CodeInvalidFormat
	if ve[0].Tag() == "required" {
		code = apierr.CodeMissingField
	}
	return apierr.New(code, fmt.Sprintf("field '%s' failed '%s'", name, ve[0].Tag()), map[string]any{
		"fields": map[string]string{name: ve[0].Tag()},
	})
}

func fromValidationErrors(ve validator.ValidationErrors) *apierr.Error {
	code := apierr.CodeMissingField
	fields := make(map[string]string, len(ve))
	msgs := make([]string, 0, len(ve))

	for _, fe := range ve {
		field := fieldPath(fe)
		fields[field] = fe.Tag()
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", field, fe.Tag()))
		if fe.Tag() != "required" {
			code = apierr.CodeInvalidFormat
		}
	}

	return apierr.New(code, strings.Join(msgs, "; "), map[string]any{"fields": fields})
}

// fieldPath drops the top-level struct name from the namespace, so
// "Credentials.username" becomes "username".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}
