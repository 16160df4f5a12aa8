package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeExtraction represents LLM extraction errors
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeStore represents relational store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeJob represents job processing errors
	ErrorTypeJob ErrorType = "job"
	// ErrorTypeRequest represents invalid API request errors
	ErrorTypeRequest ErrorType = "request"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Store Errors

// ErrSaveNotFound is returned when a save row does not exist. It is a
// terminal job failure: retrying a missing row can never succeed.
type ErrSaveNotFound struct {
	*BaseError
	SaveID string
}

func NewSaveNotFound(saveID string) *ErrSaveNotFound {
	return &ErrSaveNotFound{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("save not found: %s", saveID), nil),
		SaveID:    saveID,
	}
}

// Terminal marks the error as not worth retrying.
func (e *ErrSaveNotFound) Terminal() bool { return true }

func (e *ErrSaveNotFound) Unwrap() error { return e.BaseError }

// ErrStoreUnavailable is returned when the graph backend is not configured.
// Callers treat it as degraded mode, not a failure.
var ErrStoreUnavailable = NewBaseError(ErrorTypeStore, "graph store not configured", nil)

// Graph Errors

// ErrEntityNotFound is returned when an entity cannot be resolved in a
// user's namespace.
type ErrEntityNotFound struct {
	*BaseError
	Phone string
	Name  string
}

func NewEntityNotFound(phone, name string) *ErrEntityNotFound {
	return &ErrEntityNotFound{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("entity not found: %s", name), nil),
		Phone:     phone,
		Name:      name,
	}
}

func (e *ErrEntityNotFound) Unwrap() error { return e.BaseError }

// ErrGraphWrite is returned when a merge operation against the graph fails
type ErrGraphWrite struct {
	*BaseError
	Operation string
}

func NewGraphWrite(operation string, err error) *ErrGraphWrite {
	return &ErrGraphWrite{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("graph write failed: %s", operation), err),
		Operation: operation,
	}
}

func (e *ErrGraphWrite) Unwrap() error { return e.BaseError }

// Extraction Errors

// ErrExtractionFailed is returned when the model output cannot be parsed
// into a valid extraction. It is soft: jobs degrade to empty results.
type ErrExtractionFailed struct {
	*BaseError
	Reason string
}

func NewExtractionFailed(reason string, err error) *ErrExtractionFailed {
	return &ErrExtractionFailed{
		BaseError: NewBaseError(ErrorTypeExtraction, fmt.Sprintf("extraction failed: %s", reason), err),
		Reason:    reason,
	}
}

func (e *ErrExtractionFailed) Unwrap() error { return e.BaseError }

// Job Errors

// ErrJobProcessing wraps any failure inside a single job run
type ErrJobProcessing struct {
	*BaseError
	JobID  string
	SaveID string
}

func NewJobProcessing(jobID, saveID string, err error) *ErrJobProcessing {
	return &ErrJobProcessing{
		BaseError: NewBaseError(ErrorTypeJob, fmt.Sprintf("job %s failed", jobID), err),
		JobID:     jobID,
		SaveID:    saveID,
	}
}

func (e *ErrJobProcessing) Unwrap() error { return e.BaseError }

// Request Errors

// ErrInvalidRequest is returned at the API boundary before any side effect
type ErrInvalidRequest struct {
	*BaseError
	Field string
}

func NewInvalidRequest(field string) *ErrInvalidRequest {
	return &ErrInvalidRequest{
		BaseError: NewBaseError(ErrorTypeRequest, fmt.Sprintf("missing or invalid field: %s", field), nil),
		Field:     field,
	}
}

func (e *ErrInvalidRequest) Unwrap() error { return e.BaseError }

// terminalError is implemented by failures that can never succeed on retry.
type terminalError interface {
	Terminal() bool
}

// IsTerminal reports whether err (or anything it wraps) is a failure that
// retrying cannot fix. The drain worker dead-letters these immediately
// instead of burning the remaining attempts.
func IsTerminal(err error) bool {
	for err != nil {
		if te, ok := err.(terminalError); ok && te.Terminal() {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetErrorType extracts the ErrorType from an error chain, or empty string
func GetErrorType(err error) ErrorType {
	var base *BaseError
	if errors.As(err, &base) {
		return base.Type
	}
	return ""
}
