package common

import (
	"errors"
	"fmt"
)

// ValidationError is returned when input is rejected before any processing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ExtractionError is returned when a document cannot be read.
type ExtractionError struct {
	File string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s: %v", e.File, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ProviderError wraps failures of an external AI provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ParseError is returned when a provider response does not match the
// expected schema. Raw keeps the unparsed response.
type ParseError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s response: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StoreError wraps failures of the record-of-truth store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// GraphSyncError wraps failures of the derived graph projection. It is
// logged, never surfaced to the caller of an ingest.
type GraphSyncError struct {
	PaperID string
	Err     error
}

func (e *GraphSyncError) Error() string {
	return fmt.Sprintf("graph sync for paper %s failed: %v", e.PaperID, e.Err)
}

func (e *GraphSyncError) Unwrap() error { return e.Err }

// NotFoundError is returned when a record does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var v *NotFoundError
	return errors.As(err, &v)
}
