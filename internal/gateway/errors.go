package gateway

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedResponse means the payload does not match the shape of the query.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrMissingField means a required key is absent from the payload.
	ErrMissingField = errors.New("missing field")
)

// FailureKind classifies why a repository could not be collected.
type FailureKind string

const (
	FailureTransport    FailureKind = "transport"
	FailureAPI          FailureKind = "api"
	FailureMalformed    FailureKind = "malformed"
	FailureMissingField FailureKind = "missing_field"
	FailureUnknown      FailureKind = "unknown"
)

// APIError is a single entry of the GraphQL "errors" list.
type APIError struct {
	Type    string   `json:"type,omitempty"`
	Message string   `json:"message"`
	Path    []string `json:"path,omitempty"`
}

// APIReportedError is returned when the API answered successfully at the HTTP
// level but reported errors in the payload, e.g. for an unknown repository.
type APIReportedError struct {
	Errors []APIError
	// Raw holds the original "errors" list as received.
	Raw string
}

func (e *APIReportedError) Error() string {
	messages := make([]string, 0, len(e.Errors))
	for _, apiErr := range e.Errors {
		if apiErr.Type != "" {
			messages = append(messages, fmt.Sprintf("%s: %s", apiErr.Type, apiErr.Message))
		} else {
			messages = append(messages, apiErr.Message)
		}
	}
	return fmt.Sprintf("GraphQL API reported errors: %s", strings.Join(messages, "; "))
}

// TransportError wraps a failure to reach the API or a non-2xx response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to query GitHub GraphQL API: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// fieldError reports a shape problem at a JSON path, keeping the offending fragment.
type fieldError struct {
	kind     error
	path     string
	fragment string
	reason   string
}

func (e *fieldError) Error() string {
	msg := fmt.Sprintf("%v at %q: %s", e.kind, e.path, e.reason)
	if e.fragment != "" {
		msg += fmt.Sprintf(" (got %s)", e.fragment)
	}
	return msg
}

func (e *fieldError) Unwrap() error {
	return e.kind
}

func malformed(path, fragment, reason string) error {
	return &fieldError{kind: ErrMalformedResponse, path: path, fragment: fragment, reason: reason}
}

func missing(path string) error {
	return &fieldError{kind: ErrMissingField, path: path, reason: "key not found"}
}

// Classify maps an error returned by the gateway to a FailureKind.
func Classify(err error) FailureKind {
	var apiErr *APIReportedError
	var transportErr *TransportError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return FailureAPI
	case errors.As(err, &transportErr):
		return FailureTransport
	case errors.Is(err, ErrMissingField):
		return FailureMissingField
	case errors.Is(err, ErrMalformedResponse):
		return FailureMalformed
	default:
		return FailureUnknown
	}
}
