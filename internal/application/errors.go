package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the requested event or occurrence does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when an event id collides with a stored event.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidScope is returned when an edit or delete names an unknown scope.
	ErrInvalidScope = errors.New("application: invalid scope")
	// ErrInstanceDeleted is returned when an occurrence was removed from its series.
	ErrInstanceDeleted = fmt.Errorf("occurrence deleted: %w", ErrNotFound)
	// ErrInvalidCredentials is returned when a password does not match its stored hash.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
)

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
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
