package search

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// maxErrorBody bounds the response body kept on an APIError
const maxErrorBody = 512

// TransportError covers DNS, connect, timeout and cancellation failures
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-2xx response from the search endpoint
type APIError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request to %s returned %s", e.URL, e.Status)
	}
	return fmt.Sprintf("request to %s returned %s: %s", e.URL, e.Status, e.Body)
}

// ParseError is a response body that is not the expected JSON shape
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse response from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Kind names the error class for summaries and logs
func Kind(err error) string {
	var (
		transportErr *TransportError
		apiErr       *APIError
		parseErr     *ParseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &apiErr):
		return "api"
	case errors.As(err, &parseErr):
		return "parse"
	default:
		return "other"
	}
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
