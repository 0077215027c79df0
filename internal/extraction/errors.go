package extraction

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceUnreachable means the request never got an HTTP response.
	ErrServiceUnreachable = errors.New("extraction service unreachable")
	// ErrService matches every *ServiceError.
	ErrService = errors.New("extraction service error")
	ErrTimeout = errors.New("extraction request timed out")
)

// ServiceError is a response that arrived but is not a success: a non-2xx
// status, a payload whose status is not "success", or a payload that fails
// schema validation.
type ServiceError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 && e.Message == "" {
		return fmt.Sprintf("Server error: %d", e.StatusCode)
	}
	return e.Message
}

func (e *ServiceError) Is(target error) bool {
	return target == ErrService
}

// Snippet returns the first n bytes of the response body, or "No response".
func (e *ServiceError) Snippet(n int) string {
	if len(e.Body) == 0 {
		return "No response"
	}
	s := []rune(string(e.Body))
	if len(s) > n {
		s = s[:n]
	}
	return string(s)
}
