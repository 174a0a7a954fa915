package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Common errors returned by the client.
var (
	// ErrBudgetExhausted is returned when the retry time budget elapsed while
	// the server kept answering 429.
	ErrBudgetExhausted = errors.New("retry budget exhausted")

	// ErrContextCancelled is returned when the context is cancelled during backoff.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNotFound matches any APIError carrying HTTP 404.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork matches any NetworkError.
	ErrNetwork = errors.New("network failure")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassRateLimit represents HTTP 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNotFound represents HTTP 404 responses.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassClient represents the remaining 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents failures where no response was received.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassBudget represents an exhausted retry budget.
	ErrorClassBudget ErrorClass = "budget"
)

// classForStatus maps a non-2xx status code to its error class.
func classForStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status == http.StatusNotFound:
		return ErrorClassNotFound
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// APIError is a non-2xx response other than 429.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Endpoint   Endpoint
	Message    string
	Body       []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("schedule API %s error on %s (status %d): %s",
		e.ErrorClass, e.Endpoint, e.StatusCode, e.Message)
}

// NotFound reports whether the error is a 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.NotFound()
}

// newAPIError builds an APIError, preferring the server-provided message.
func newAPIError(endpoint Endpoint, status int, body []byte) *APIError {
	return &APIError{
		StatusCode: status,
		ErrorClass: classForStatus(status),
		Endpoint:   endpoint,
		Message:    serverMessage(status, body),
		Body:       body,
	}
}

// serverMessage extracts "message" or "error" from a JSON error body, falling
// back to the raw body and finally the status text.
func serverMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}

// NetworkError is a transport failure with no HTTP response.
type NetworkError struct {
	Endpoint Endpoint
	Err      error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("schedule API network error on %s: %v", e.Endpoint, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNetwork) match any NetworkError.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// BudgetExhaustedError is returned when rate limiting outlasted MaxRetryTime.
type BudgetExhaustedError struct {
	Endpoint Endpoint
	Budget   time.Duration
	Attempts int
}

// Error implements the error interface.
func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("%v: %s still rate limited after %d attempts within %s",
		ErrBudgetExhausted, e.Endpoint, e.Attempts, e.Budget)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *BudgetExhaustedError) Unwrap() error {
	return ErrBudgetExhausted
}
