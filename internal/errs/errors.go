package errs

import (
	"errors"
	"sort"
	"strings"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
)

// ValidationError carries a summary message and optional per-field messages.
// It unwraps to ErrInvalid so callers can match it with errors.Is.
type ValidationError struct {
	Msg    string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return e.Msg + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Invalid returns a ValidationError without field details.
func Invalid(msg string) error { return &ValidationError{Msg: msg} }

// InvalidField returns a ValidationError for a single field.
func InvalidField(field, msg string) error {
	return &ValidationError{Msg: "validation failed", Fields: map[string]string{field: msg}}
}
