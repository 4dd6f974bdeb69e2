// Package validation wraps go-playground/validator with short, field-named
// error messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error reports the first failed rule of a validated struct.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Validator validates structs, naming fields by the given struct tag.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator whose messages use the tagName struct tag (for
// example "json" or "env") as the field name, falling back to the Go name.
func New(tagName string) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get(tagName)
		if tag == "-" || tag == "" {
			return fld.Name
		}
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		return tag
	})
	_ = v.RegisterValidation("gs_uri", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		rest, ok := strings.CutPrefix(s, "gs://")
		if !ok {
			return false
		}
		bucket, object, ok := strings.Cut(rest, "/")
		return ok && bucket != "" && object != ""
	})
	return &Validator{v: v}
}

// Struct validates s and returns an *Error describing the first violation.
func (x *Validator) Struct(s interface{}) error {
	err := x.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &Error{Field: fe.Field(), Message: message(fe)}
	}
	return fmt.Errorf("validation: %w", err)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must be numeric", fe.Field())
	case "gs_uri":
		return fmt.Sprintf("%s must look like gs://bucket/object", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
