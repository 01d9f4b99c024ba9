// ABOUTME: Error taxonomy for API calls and HTTP status mapping
// ABOUTME: Callers match sentinels with errors.Is and show the server detail verbatim

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// API errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrValidation         = errors.New("validation error")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrServer             = errors.New("server error")
	ErrStreamStart        = errors.New("stream could not be started")
	ErrStreamTransport    = errors.New("stream interrupted")
)

// Error is a failed API response. Kind is one of the sentinels above.
type Error struct {
	Kind   error
	Status int
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Detail returns the server-provided message of an API error, or the error
// text when the failure did not come from the server.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return err.Error()
}

// statusError converts a non-2xx response into an *Error. op names the
// operation so that 401 on login reads as bad credentials rather than an
// expired session.
func statusError(op string, status int, detail string) error {
	if detail == "" {
		detail = http.StatusText(status)
	}

	var kind error
	switch {
	case status == http.StatusUnauthorized && op == opLogin:
		kind = ErrInvalidCredentials
	case status == http.StatusUnauthorized:
		kind = ErrUnauthorized
	case status == http.StatusForbidden:
		kind = ErrForbidden
	case status == http.StatusNotFound:
		kind = ErrNotFound
	case status == http.StatusConflict:
		kind = ErrEmailAlreadyExists
	case status == http.StatusBadRequest && op == opRegister && strings.Contains(strings.ToLower(detail), "already"):
		kind = ErrEmailAlreadyExists
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		kind = ErrValidation
	default:
		kind = ErrServer
	}

	return &Error{Kind: kind, Status: status, Detail: detail}
}
