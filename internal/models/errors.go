package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common errors used throughout the application
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrLocationNotFound = errors.New("location not found")
	ErrStudentNotFound  = errors.New("student not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrStaffNotFound    = errors.New("staff user not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateEntry   = errors.New("duplicate entry")
	ErrCapacityExceeded = errors.New("slot capacity exceeded")
	ErrBookingTerminal  = errors.New("booking is in a terminal status")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrCartInvalid      = errors.New("cart has validation errors")
	ErrOrderClosed      = errors.New("order can no longer be completed")
)

// FieldError is a single field-scoped validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every field failure found by a boundary validator.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets callers match ValidationErrors against ErrInvalidInput.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrInvalidInput
}

// Add appends a failure for field.
func (v *ValidationErrors) Add(field, format string, args ...interface{}) {
	*v = append(*v, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Merge appends errs with every field prefixed by prefix.
func (v *ValidationErrors) Merge(prefix string, err error) {
	var other ValidationErrors
	if !errors.As(err, &other) {
		if err != nil {
			v.Add(prefix, "%s", err.Error())
		}
		return
	}
	for _, fe := range other {
		field := fe.Field
		if prefix != "" {
			field = prefix + "." + field
		}
		*v = append(*v, FieldError{Field: field, Message: fe.Message})
	}
}

// Fields groups messages by field, the shape returned to HTTP clients.
func (v ValidationErrors) Fields() map[string][]string {
	out := make(map[string][]string, len(v))
	for _, fe := range v {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// Sorted returns the failures ordered by field name.
func (v ValidationErrors) Sorted() ValidationErrors {
	out := append(ValidationErrors(nil), v...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// ErrOrNil returns nil when no failures were collected.
func (v ValidationErrors) ErrOrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
