package service

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newValidator reports fields by their JSON names so messages match what the
// client sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// describe turns validation failures into one client-facing sentence.
func describe(errs validator.ValidationErrors) string {
	var missing, invalid []string
	for _, fe := range errs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, fe.Field())
	}
	switch {
	case len(missing) > 0:
		return "Missing required fields: " + strings.Join(missing, ", ")
	default:
		return "Invalid fields: " + strings.Join(invalid, ", ")
	}
}

// optional maps blank or whitespace-only values to nil (SQL NULL).
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
