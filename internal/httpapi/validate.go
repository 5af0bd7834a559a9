package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/tinoosan/filmorate/internal/errs"
)

// validation wraps go-playground/validator and converts its failures into
// errs.ValidationError keyed by JSON field path.
type validation struct {
	v *validator.Validate
}

func newValidation() *validation {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("nowhitespace", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsSpace) < 0
	})

	return &validation{v: v}
}

func (v *validation) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		fields[fieldPath(e)] = friendlyMessage(e)
	}
	return &errs.ValidationError{Msg: "validation failed", Fields: fields}
}

// fieldPath drops the top-level struct name from the namespace, so
// "filmRequest.genres[0].id" becomes "genres[0].id".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return e.Field()
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "nowhitespace":
		return "must not contain whitespace"
	default:
		return fmt.Sprintf("failed %s validation", e.Tag())
	}
}
