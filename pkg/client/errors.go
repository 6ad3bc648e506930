package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client. Every failure returned by Client is a
// *BackendError that matches exactly one of these with errors.Is.
var (
	// ErrRemoteUnavailable is returned when the backend could not be reached
	// or answered with a server error and no usable body.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrInvalidResponse is returned when the response body is malformed or
	// lacks the expected payload.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrRejected is returned when the backend explicitly reported failure
	// (success=false, an error field, or a 4xx/5xx status with a JSON body).
	ErrRejected = errors.New("request rejected")
)

// ErrorClass represents a classification of backend failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents transport errors and bodiless 5xx replies.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassMalformed represents unparsable or incomplete bodies.
	ErrorClassMalformed ErrorClass = "malformed"

	// ErrorClassRejected represents explicit "not successful" replies.
	ErrorClassRejected ErrorClass = "rejected"
)

// BackendError represents a failed backend call with additional context.
type BackendError struct {
	Endpoint   string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	msg := fmt.Sprintf("backend %s %s", e.Endpoint, e.Class)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the error's class.
func (e *BackendError) Is(target error) bool {
	return target == sentinelFor(e.Class)
}

// UserMessage returns the text shown to the user for this failure.
func (e *BackendError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Class {
	case ErrorClassNetwork:
		return "backend unavailable"
	case ErrorClassMalformed:
		return "unexpected response from backend"
	default:
		return "request failed"
	}
}

func sentinelFor(class ErrorClass) error {
	switch class {
	case ErrorClassNetwork:
		return ErrRemoteUnavailable
	case ErrorClassMalformed:
		return ErrInvalidResponse
	case ErrorClassRejected:
		return ErrRejected
	default:
		return nil
	}
}
