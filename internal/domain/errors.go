package domain

import (
	"errors"
)

// Common domain errors
var (
	ErrNotFound = errors.New("not found")
	ErrNoPath   = errors.New("no path provided")
	ErrNoInput  = errors.New("received no input")

	// Fetch errors
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrBlacklisted      = errors.New("url is blacklisted")
	ErrPayloadTooLarge  = errors.New("response body exceeds size limit")

	// Save errors
	ErrUndecodable       = errors.New("payload is not a decodable image")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrNotADirectory     = errors.New("path exists and is not a directory")
)

// SkippableError represents an error that can be logged and skipped.
// Processing can continue with the next item when this error occurs.
type SkippableError struct {
	Err     error
	Context string
}

// Error returns the error message
func (e *SkippableError) Error() string {
	if e.Context != "" {
		if e.Err != nil {
			return e.Context + ": " + e.Err.Error()
		}
		return e.Context
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "skippable error"
}

// Unwrap returns the underlying error
func (e *SkippableError) Unwrap() error {
	return e.Err
}

// NewSkippableError creates a new skippable error
func NewSkippableError(err error, context string) *SkippableError {
	return &SkippableError{Err: err, Context: context}
}

// IsSkippable returns true if the error can be skipped
func IsSkippable(err error) bool {
	var se *SkippableError
	return errors.As(err, &se)
}
