package backend

import "fmt"

// ServiceError is returned when the service replied with a non-2xx status.
// It is never retried: the service made a decision and retrying would not
// change it.
type ServiceError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("request did not succeed: %s %s: HTTP %d - %s",
		e.Method, e.Path, e.StatusCode, bodySnippet(e.Body))
}

// ExhaustedError is returned when every attempt failed with a transient
// network error and no response was ever obtained.
type ExhaustedError struct {
	Method   string
	Path     string
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %s %s: %v",
		e.Attempts, e.Method, e.Path, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// bodySnippet trims an error body for inclusion in error messages.
func bodySnippet(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "... (truncated)"
	}
	return string(body)
}
