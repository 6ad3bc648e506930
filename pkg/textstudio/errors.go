package textstudio

import (
	"errors"
	"fmt"
)

// Common errors returned by the TextStudio client.
var (
	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("textstudio api key is required")

	// ErrInvalidRequest is returned when text or style id is missing.
	ErrInvalidRequest = errors.New("missing text or styleId")

	// ErrUnsuccessful is wrapped when TextStudio answered success=false.
	ErrUnsuccessful = errors.New("textstudio reported failure")

	// ErrRetryExhausted is returned when all retry attempts failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context was cancelled while
	// waiting for the next attempt.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of upstream errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx replies. Never retried.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx replies.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a 2xx reply whose body is not JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// APIError represents a failed TextStudio call.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("textstudio %s error", e.Class)
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
func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *APIError) Retryable() bool {
	return shouldRetry(e.Class)
}

// classify returns the error class for an HTTP status code.
func classify(statusCode int) ErrorClass {
	switch {
	case statusCode >= 500:
		return ErrorClassServer
	case statusCode >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// classOf extracts the error class of err, or "" if err is not an *APIError.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ""
}

// shouldRetry determines if an error class should be retried.
func shouldRetry(class ErrorClass) bool {
	return class == ErrorClassServer || class == ErrorClassNetwork
}
