package client

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{
		StatusCode: 503,
		Endpoint:   "/search",
		Retryable:  true,
		Message:    "retry attempts exhausted",
	}

	msg := err.Error()
	for _, want := range []string{"503", "/search", "retryable true"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := fmt.Errorf("outer: %w", &APIError{Endpoint: "/search", Err: inner})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("errors.As failed to find APIError")
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is failed to reach the wrapped cause")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"retryable api error", &APIError{Retryable: true}, true},
		{"non-retryable api error", &APIError{Retryable: false}, false},
		{"wrapped retryable", fmt.Errorf("ctx: %w", &APIError{Retryable: true}), true},
		{"unrelated error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		netErr error
		want   ErrorClass
	}{
		{0, errors.New("dial tcp: refused"), ErrorClassNetwork},
		{429, nil, ErrorClassRateLimit},
		{400, nil, ErrorClassClient},
		{404, nil, ErrorClassClient},
		{500, nil, ErrorClassServer},
		{503, nil, ErrorClassServer},
		{200, nil, ErrorClass("")},
	}

	for _, tt := range tests {
		if got := classify(tt.status, tt.netErr); got != tt.want {
			t.Errorf("classify(%d, %v) = %q, want %q", tt.status, tt.netErr, got, tt.want)
		}
	}
}
