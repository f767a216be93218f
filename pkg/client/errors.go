package client

import (
	"errors"
	"fmt"
)

// Common errors used by the client.
var (
	// ErrContextCancelled is returned by the default sleeper when the context
	// is cancelled during a backoff wait.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrAPIKeyRequired is returned by New when no API key is configured.
	ErrAPIKeyRequired = errors.New("api key is required")
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport errors (timeouts, refused connections).
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a successful status with an undecodable body.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassHTTP represents any other unsuccessful status.
	ErrorClassHTTP ErrorClass = "http"
)

// FetchError describes one failed attempt.
type FetchError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("OTX %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("OTX %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// shouldRetry reports whether a failure of the given class is transient.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassRateLimit, ErrorClassNetwork, ErrorClassDecode:
		return true
	default:
		return false
	}
}
