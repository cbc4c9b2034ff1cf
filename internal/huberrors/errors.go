// Package huberrors provides sentinel and custom error types for the application.
package huberrors

import "strconv"

// ErrNotFound represents a "not found" error.
// Use when a referenced feedback item doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrNotAnalyzed is the sentinel for similarity lookups on items without a completed analysis.
var ErrNotAnalyzed = &NotAnalyzedError{}

// NotAnalyzedError is returned when an item has no completed analysis or no themes.
type NotAnalyzedError struct {
	FeedbackID int64
}

// Error implements the error interface.
func (e *NotAnalyzedError) Error() string {
	return "Feedback not found or not analyzed"
}

// Is implements the error interface for error comparison.
func (e *NotAnalyzedError) Is(target error) bool {
	_, ok := target.(*NotAnalyzedError)

	return ok
}

// ErrParse is the sentinel for inference output that failed schema validation.
var ErrParse = &ParseError{}

// ParseError wraps the decode or validation failure of an inference response.
type ParseError struct {
	Message string
	Err     error
}

// NewParseError creates a ParseError carrying the underlying cause.
func NewParseError(message string, err error) *ParseError {
	return &ParseError{Message: message, Err: err}
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "invalid inference response"
	}

	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *ParseError) Is(target error) bool {
	_, ok := target.(*ParseError)

	return ok
}

// ErrAnalysisFailed is the sentinel for terminal analysis failures.
var ErrAnalysisFailed = &AnalysisFailedError{}

// AnalysisFailedError is returned after an analysis attempt failed and the failure was persisted.
type AnalysisFailedError struct {
	FeedbackID int64
	Message    string
}

// NewAnalysisFailedError creates an AnalysisFailedError for the given feedback item.
func NewAnalysisFailedError(feedbackID int64, message string) *AnalysisFailedError {
	return &AnalysisFailedError{FeedbackID: feedbackID, Message: message}
}

// Error implements the error interface.
func (e *AnalysisFailedError) Error() string {
	return "analysis failed for feedback " + strconv.FormatInt(e.FeedbackID, 10) + ": " + e.Message
}

// Is implements the error interface for error comparison.
func (e *AnalysisFailedError) Is(target error) bool {
	_, ok := target.(*AnalysisFailedError)

	return ok
}
