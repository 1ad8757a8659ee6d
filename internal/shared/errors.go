package shared

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wholesale-pos/wholesale-pos/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = httpx.ErrNotFound
	// ErrInvalidPayload indicates a request body that could not be decoded.
	ErrInvalidPayload = errors.New("invalid payload")
)

// ValidationError reports per-field validation failures.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError converts validator output into a ValidationError. Errors
// that are not validator.ValidationErrors are returned unchanged.
func NewValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fieldErr := range verrs {
		fields[fieldErr.Field()] = fieldErr.Error()
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// FieldMessages returns the per-field messages.
func (e *ValidationError) FieldMessages() map[string]string {
	return e.Fields
}

// Unwrap lets callers match httpx.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return httpx.ErrValidation
}
