package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrTodoNotFound returns an error for when a todo id is not in the collection.
func ErrTodoNotFound(id int) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("todo not found: %d", id),
		Suggestion: "Use 'todoapp list' to see all todos and their ids",
	}
}

// ErrUserIDNotConfigured returns an error when no owner identifier is set.
func ErrUserIDNotConfigured() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("user id is not configured"),
		Suggestion: "Set api.user_id in your config file, TODOAPP_USER_ID, or pass --user-id",
	}
}

// ErrBackendOffline returns an error when the collection API is unreachable with smart suggestions.
func ErrBackendOffline(baseURL, reason string) error {
	suggestion := getSmartSuggestion(reason)
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("todo API at %s is unreachable: %s", baseURL, reason),
		Suggestion: suggestion,
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the server is running (try 'todoapp serve') and api.base_url is correct"
	}

	if strings.Contains(lowerReason, "timeout") || strings.Contains(lowerReason, "i/o timeout") {
		return "The server may be slow or unreachable. Try again later"
	}

	return "Check your internet connection and try again"
}

// ErrInvalidFilter returns an error for an unknown filter name with valid options.
func ErrInvalidFilter(filter string, valid []string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid filter: %s", filter),
		Suggestion: fmt.Sprintf("Valid options: %s", strings.Join(valid, ", ")),
	}
}

// ErrInvalidID returns an error for a todo id argument that is not a positive integer.
func ErrInvalidID(raw string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid todo id: %q", raw),
		Suggestion: "Todo ids are positive integers as shown by 'todoapp list'",
	}
}

// ErrNotATerminal returns an error when the interactive UI is started without a TTY.
func ErrNotATerminal() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("standard input is not a terminal"),
		Suggestion: "Use the non-interactive commands, e.g. 'todoapp list' or 'todoapp add'",
	}
}
