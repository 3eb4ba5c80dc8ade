package agent

import (
	"fmt"
	"time"
)

// Validation error codes.
const (
	CodeEmptyQuery     = "empty_query"
	CodeMalformedQuery = "malformed_query"
	CodeBadArgument    = "bad_argument"
)

// ValidationError reports malformed caller input. It is always produced
// locally, before any transport call, and is never retried.
type ValidationError struct {
	Code    string // Machine-readable code: empty_query, bad_argument, ...
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewArgumentError creates a ValidationError for a bad argument type or value.
func NewArgumentError(format string, v ...interface{}) *ValidationError {
	return &ValidationError{Code: CodeBadArgument, Message: fmt.Sprintf(format, v...)}
}

// TransientError wraps a connection-level failure that is eligible for retry.
// Callers only see it as the cause inside an ExhaustedError.
type TransientError struct {
	Op  string // Method and path of the failed exchange
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure on %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ExhaustedError reports that the transport gave up after exhausting its
// retry budget. It wraps the last transient failure.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// AppError is a well-formed error response from the agent. The raw status
// and body are preserved verbatim; application errors are never retried.
type AppError struct {
	StatusCode int
	Body       []byte
	Kind       string // Agent's error identifier, if the body carried one
	Message    string // Agent's message, if the body carried one
}

func (e *AppError) Error() string {
	if e.Kind != "" || e.Message != "" {
		return fmt.Sprintf("agent error %d: %s: %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("agent error %d: %s", e.StatusCode, string(e.Body))
}

// ReadyTimeoutError reports that the agent did not become reachable within
// the configured deadline.
type ReadyTimeoutError struct {
	Timeout time.Duration
	LastErr error // Failure from the final probe, if any
}

func (e *ReadyTimeoutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("agent did not respond within %v (last probe: %v)", e.Timeout, e.LastErr)
	}
	return fmt.Sprintf("agent did not respond within %v", e.Timeout)
}

func (e *ReadyTimeoutError) Unwrap() error { return e.LastErr }
