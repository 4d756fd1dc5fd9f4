package automation

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rotisserie/eris"
)

// Error kinds. Every error returned by the client matches exactly one of
// them with errors.Is.
var (
	ErrProviderTimeout   = eris.New("provider timeout")
	ErrProviderError     = eris.New("provider error")
	ErrMalformedResponse = eris.New("malformed response")
)

// Error is a failed call to an automation endpoint.
type Error struct {
	Kind       error
	Endpoint   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("automation: %s: %s", e.Endpoint, e.Kind.Error())
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Kind returns the taxonomy label recorded in a run's error list.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProviderTimeout):
		return "provider_timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrProviderError):
		return "provider_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "provider_timeout"
	default:
		return "internal"
	}
}

func transportError(ctx context.Context, endpoint string, err error) *Error {
	kind := ErrProviderError
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		kind = ErrProviderTimeout
	}
	return &Error{Kind: kind, Endpoint: endpoint, Cause: err}
}

func statusError(endpoint string, status int, body []byte) *Error {
	kind := ErrProviderError
	if status == 408 || status == 504 {
		kind = ErrProviderTimeout
	}
	return &Error{Kind: kind, Endpoint: endpoint, StatusCode: status, Message: excerpt(body)}
}

func excerpt(body []byte) string {
	const max = 300
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
