package officehour

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated is matched by UnauthenticatedError through errors.Is.
	ErrUnauthenticated = errors.New("officehour: unauthenticated")
	// ErrInvalidTransition is returned when a change request leaves a non-pending state.
	ErrInvalidTransition = errors.New("officehour: invalid status transition")
)

// MalformedRecordError reports a stored office hour that breaks the record invariants.
type MalformedRecordError struct {
	RecordID string
	Reason   string
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	if e == nil {
		return ""
	}
	if e.RecordID == "" {
		return "officehour: malformed record: " + e.Reason
	}
	return fmt.Sprintf("officehour: malformed record %q: %s", e.RecordID, e.Reason)
}

// UnauthenticatedError is returned when an operation runs without a resolved acting user.
type UnauthenticatedError struct {
	Missing []string
}

// Error implements the error interface.
func (e *UnauthenticatedError) Error() string {
	if e == nil || len(e.Missing) == 0 {
		return ErrUnauthenticated.Error()
	}
	return fmt.Sprintf("%s: missing %s", ErrUnauthenticated.Error(), strings.Join(e.Missing, ", "))
}

// Unwrap exposes ErrUnauthenticated to errors.Is.
func (e *UnauthenticatedError) Unwrap() error {
	return ErrUnauthenticated
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Add records a field level validation error. The first message for a field wins.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// Merge copies entries from another validation error into the receiver.
func (v *ValidationError) Merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.Add(field, msg)
	}
}

// Field returns the message recorded for field, or "".
func (v *ValidationError) Field(field string) string {
	if v == nil {
		return ""
	}
	return v.FieldErrors[field]
}

// OrNil returns nil when no issues were recorded so callers can `return vErr.OrNil()`.
func (v *ValidationError) OrNil() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}
