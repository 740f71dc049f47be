package speech

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ProblemDetails is the RFC-7807 style error body returned by the remote service
type ProblemDetails struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Status    int               `json:"status"`
	Detail    string            `json:"detail"`
	Instance  string            `json:"instance"`
	Timestamp string            `json:"timestamp"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// ProblemError is returned when the service responds with a non-2xx status.
// Title/Detail/Status are carried unchanged from the response body when it
// parses; otherwise they are synthesized from the HTTP status line.
type ProblemError struct {
	Problem ProblemDetails
}

func (e *ProblemError) Error() string {
	if e.Problem.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Problem.Title, e.Problem.Detail)
	}
	return e.Problem.Title
}

// TransportKind classifies failures that produced no usable response
type TransportKind int

const (
	// KindTimeout covers context deadline expiry and caller-initiated cancellation
	KindTimeout TransportKind = iota
	// KindNetwork covers every other transport-level failure
	KindNetwork
)

// TransportError is returned for transport-level failures. The message is
// deliberately generic; the underlying cause is kept for logging only.
type TransportError struct {
	Kind  TransportKind
	cause error
}

func (e *TransportError) Error() string {
	if e.Kind == KindTimeout {
		return "request timeout or cancelled"
	}
	return "network error occurred"
}

func (e *TransportError) Unwrap() error {
	return e.cause
}

// NewTransportError wraps a low-level failure with the given classification
func NewTransportError(kind TransportKind, cause error) *TransportError {
	return &TransportError{Kind: kind, cause: cause}
}

// DecodeProblem builds a ProblemError from a non-2xx response body. If the
// body is not a parseable problem payload, a fallback error is synthesized
// carrying the HTTP status and status text.
func DecodeProblem(statusCode int, body []byte, instance string) *ProblemError {
	var problem ProblemDetails
	if err := json.Unmarshal(body, &problem); err != nil || problem.Title == "" {
		problem = ProblemDetails{
			Type:      "unknown-error",
			Title:     "Unknown Error",
			Status:    statusCode,
			Detail:    http.StatusText(statusCode),
			Instance:  instance,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
	}
	if problem.Status == 0 {
		problem.Status = statusCode
	}
	return &ProblemError{Problem: problem}
}
