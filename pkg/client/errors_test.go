package client

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestClassForStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{http.StatusTooManyRequests, ErrorClassRateLimit},
		{http.StatusNotFound, ErrorClassNotFound},
		{http.StatusBadRequest, ErrorClassClient},
		{http.StatusUnauthorized, ErrorClassClient},
		{http.StatusConflict, ErrorClassClient},
		{http.StatusInternalServerError, ErrorClassServer},
		{http.StatusBadGateway, ErrorClassServer},
		{http.StatusServiceUnavailable, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			if got := classForStatus(tt.status); got != tt.expected {
				t.Errorf("classForStatus(%d) = %v, expected %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestServerMessage(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"message field", 400, `{"message": "start must precede end"}`, "start must precede end"},
		{"error field", 500, `{"error": "database unavailable"}`, "database unavailable"},
		{"message wins over error", 400, `{"message": "a", "error": "b"}`, "a"},
		{"plain text body", 502, "  upstream timeout\n", "upstream timeout"},
		{"json without known fields", 409, `{"code": 7}`, `{"code": 7}`},
		{"empty body", 403, "", "Forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serverMessage(tt.status, []byte(tt.body)); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	err := newAPIError("/appointments/9", http.StatusNotFound, []byte(`{"message": "Appointment not found"}`))

	expected := "schedule API not_found error on /appointments/9 (status 404): Appointment not found"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestAPIError_NotFound(t *testing.T) {
	notFound := error(newAPIError("/a", http.StatusNotFound, nil))
	serverErr := error(newAPIError("/a", http.StatusInternalServerError, nil))

	if !errors.Is(notFound, ErrNotFound) {
		t.Error("Expected 404 to match ErrNotFound")
	}
	if errors.Is(serverErr, ErrNotFound) {
		t.Error("Expected 500 not to match ErrNotFound")
	}

	wrapped := fmt.Errorf("load calendar: %w", notFound)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("Expected wrapped 404 to match ErrNotFound")
	}

	var nf interface{ NotFound() bool }
	if !errors.As(wrapped, &nf) || !nf.NotFound() {
		t.Error("Expected wrapped 404 to expose NotFound() == true")
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&NetworkError{Endpoint: "/slots", Err: cause})

	if !errors.Is(err, cause) {
		t.Error("Expected NetworkError to unwrap to its cause")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Error("Expected NetworkError to match ErrNetwork")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("Expected NetworkError not to match ErrNotFound")
	}

	expected := "schedule API network error on /slots: connection refused"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestBudgetExhaustedError(t *testing.T) {
	err := error(&BudgetExhaustedError{Endpoint: "/slots", Budget: 10 * time.Second, Attempts: 4})

	if !errors.Is(err, ErrBudgetExhausted) {
		t.Error("Expected BudgetExhaustedError to match ErrBudgetExhausted")
	}

	expected := "retry budget exhausted: /slots still rate limited after 4 attempts within 10s"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}
