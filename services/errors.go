package services

import (
	"errors"
	"fmt"
)

var (
	// ErrRowNotFound means no costing item is bound to the requested row.
	ErrRowNotFound = errors.New("row not found")
	// ErrQuoteNotFound is returned by read-only lookups of unknown quotes.
	ErrQuoteNotFound = errors.New("quote not found")
	// ErrDropdownNotFound is returned for an unknown dropdown id.
	ErrDropdownNotFound = errors.New("dropdown not found")
)

// ValidationError is a rejected user input, tied to the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StaleCatalogError is returned when a caller prices against an outdated
// dropdown catalog.
type StaleCatalogError struct {
	Version string
}

func (e *StaleCatalogError) Error() string {
	return "stale catalog"
}
