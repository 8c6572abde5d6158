package usecase

import (
	"errors"
	"fmt"

	"strategy-advisor/internal/domain"
	"strategy-advisor/internal/integrations/agentcore"
)

type ErrorKind string

const (
	ErrorMissingCredentials ErrorKind = "MISSING_CREDENTIALS"
	ErrorHTTP               ErrorKind = "HTTP_ERROR"
	ErrorStreamRead         ErrorKind = "STREAM_READ_ERROR"
	ErrorNetwork            ErrorKind = "NETWORK_ERROR"
	ErrorInternal           ErrorKind = "INTERNAL_ERROR"
)

// Error is a pipeline failure. Error() is the message shown to the user;
// the cause stays reachable through Unwrap.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of a pipeline error, or ErrorInternal for
// anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorInternal
}

func credentialsError(err error) *Error {
	if errors.Is(err, domain.ErrNoCredentials) {
		return newError(ErrorMissingCredentials, "No AWS credentials received from Cognito.", err)
	}
	return newError(ErrorMissingCredentials, fmt.Sprintf("Could not obtain AWS credentials: %v", err), err)
}

func invokeError(err error) *Error {
	var statusErr *agentcore.HTTPStatusError
	switch {
	case errors.Is(err, agentcore.ErrMissingCredentials):
		return newError(ErrorMissingCredentials, "No AWS credentials received from Cognito.", err)
	case errors.As(err, &statusErr):
		return newError(ErrorHTTP, fmt.Sprintf("HTTP %d: %s", statusErr.StatusCode, statusErr.Body), err)
	case errors.Is(err, agentcore.ErrNoBody):
		return newError(ErrorStreamRead, "No response body", err)
	case errors.Is(err, agentcore.ErrTransport):
		return newError(ErrorNetwork, fmt.Sprintf("Failed to reach agent: %v", err), err)
	default:
		return newError(ErrorInternal, err.Error(), err)
	}
}

func streamError(err error) *Error {
	return newError(ErrorStreamRead, fmt.Sprintf("Failed to read response stream: %v", err), err)
}
