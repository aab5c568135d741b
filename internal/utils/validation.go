package utils

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseTodoID parses a CLI todo id argument. Ids are positive; 0 is reserved
// for unsaved todos and never addresses a stored one.
func ParseTodoID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, ErrInvalidID(raw)
	}
	return id, nil
}

// ValidateBaseURL checks that the collection API base URL is an absolute http(s) URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base URL %q: missing host", raw)
	}
	return nil
}
