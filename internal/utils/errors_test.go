package utils

import (
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// Error Tests
// =============================================================================

// TestErrorWithSuggestionImplementsError verifies interface compliance
func TestErrorWithSuggestionImplementsError(t *testing.T) {
	var _ error = &ErrorWithSuggestion{}
}

// TestErrorWithSuggestionError verifies Error() method output
func TestErrorWithSuggestionError(t *testing.T) {
	err := &ErrorWithSuggestion{
		Err:        errors.New("something went wrong"),
		Suggestion: "Try doing X",
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "something went wrong") {
		t.Errorf("Error() should contain error message, got: %s", errStr)
	}
	if !strings.Contains(errStr, "Suggestion:") {
		t.Errorf("Error() should contain 'Suggestion:', got: %s", errStr)
	}
	if !strings.Contains(errStr, "Try doing X") {
		t.Errorf("Error() should contain suggestion text, got: %s", errStr)
	}
}

// TestErrorWithSuggestionUnwrap verifies Unwrap() for error chain
func TestErrorWithSuggestionUnwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &ErrorWithSuggestion{
		Err:        underlying,
		Suggestion: "suggestion",
	}

	if errors.Unwrap(err) != underlying {
		t.Errorf("Unwrap() should return underlying error")
	}
}

// TestWrapWithSuggestion verifies WrapWithSuggestion function
func TestWrapWithSuggestion(t *testing.T) {
	wrapped := WrapWithSuggestion(errors.New("original error"), "custom suggestion")

	var errWithSuggestion *ErrorWithSuggestion
	if !errors.As(wrapped, &errWithSuggestion) {
		t.Fatal("WrapWithSuggestion should return *ErrorWithSuggestion")
	}
	if errWithSuggestion.GetSuggestion() != "custom suggestion" {
		t.Errorf("Suggestion = %s, want 'custom suggestion'", errWithSuggestion.GetSuggestion())
	}
}

// =============================================================================
// Pre-built Error Constructor Tests
// =============================================================================

func TestErrTodoNotFound(t *testing.T) {
	err := ErrTodoNotFound(42)
	if !strings.Contains(err.Error(), "42") {
		t.Errorf("error should mention the id, got: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "todoapp list") {
		t.Errorf("suggestion should point at 'todoapp list', got: %s", err.Error())
	}
}

func TestErrUserIDNotConfigured(t *testing.T) {
	var ews *ErrorWithSuggestion
	if !errors.As(ErrUserIDNotConfigured(), &ews) {
		t.Fatal("expected *ErrorWithSuggestion")
	}
	if !strings.Contains(ews.GetSuggestion(), "--user-id") {
		t.Errorf("suggestion should mention --user-id, got: %s", ews.GetSuggestion())
	}
}

func TestErrBackendOfflineSuggestions(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"dial tcp: lookup api.example.com: no such host", "DNS"},
		{"dial tcp 127.0.0.1:8080: connect: connection refused", "todoapp serve"},
		{"net/http: request canceled (Client.Timeout exceeded): i/o timeout", "Try again later"},
		{"something odd", "internet connection"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var ews *ErrorWithSuggestion
			if !errors.As(ErrBackendOffline("http://localhost:8080", tt.reason), &ews) {
				t.Fatal("expected *ErrorWithSuggestion")
			}
			if !strings.Contains(ews.GetSuggestion(), tt.want) {
				t.Errorf("suggestion %q should contain %q", ews.GetSuggestion(), tt.want)
			}
		})
	}
}

func TestErrInvalidFilter(t *testing.T) {
	err := ErrInvalidFilter("done", []string{"all", "active", "completed"})
	if !strings.Contains(err.Error(), "done") {
		t.Errorf("error should mention the bad filter, got: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "all, active, completed") {
		t.Errorf("error should list valid filters, got: %s", err.Error())
	}
}
