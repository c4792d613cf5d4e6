package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the executor.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrCircuitOpen is returned when a call is rejected because the
	// endpoint's circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrDeadlineExceeded is returned when the per-call deadline elapses
	// before a response is obtained.
	ErrDeadlineExceeded = errors.New("request deadline exceeded")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents non-retryable 4xx failures.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx provider failures.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses from the provider.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport and timeout failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassCircuit represents calls rejected by an open circuit.
	ErrorClassCircuit ErrorClass = "circuit"
)

// classify maps an HTTP status (or its absence) to an error class.
func classify(statusCode int, netErr error) ErrorClass {
	if netErr != nil {
		return ErrorClassNetwork
	}
	switch {
	case statusCode == 429:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// APIError is a terminal provider failure, surfaced only once retry and
// circuit policy are exhausted. It carries enough context to distinguish
// "provider down" from "bad input".
type APIError struct {
	StatusCode int
	Endpoint   string
	Retryable  bool
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error (status %d, endpoint %s, retryable %t): %s: %v",
			e.StatusCode, e.Endpoint, e.Retryable, e.Message, e.Err)
	}
	return fmt.Sprintf("provider error (status %d, endpoint %s, retryable %t): %s",
		e.StatusCode, e.Endpoint, e.Retryable, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is an APIError the caller may re-issue
// later.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}
