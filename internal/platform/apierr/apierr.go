package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeUnauthenticated    = "unauthenticated"
	CodeValidation         = "validation_error"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeServiceUnavailable = "service_unavailable"
	CodeGenerationFailed   = "generation_failed"
	CodeInternal           = "internal_error"
)

// Error is returned by services whenever a failure has a definite HTTP
// meaning. Err carries the user-facing message; Details optional diagnostics.
type Error struct {
	Status  int
	Code    string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func (e *Error) WithDetails(details string) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Details = details
	return &cp
}

func Unauthenticated(msg string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthenticated, errors.New(msg))
}

func Validation(msg string) *Error {
	return New(http.StatusBadRequest, CodeValidation, errors.New(msg))
}

func NotFound(msg string) *Error {
	return New(http.StatusNotFound, CodeNotFound, errors.New(msg))
}

func Conflict(msg string) *Error {
	return New(http.StatusConflict, CodeConflict, errors.New(msg))
}

func ServiceUnavailable(msg, details string) *Error {
	return New(http.StatusServiceUnavailable, CodeServiceUnavailable, errors.New(msg)).WithDetails(details)
}

func GenerationFailed(msg, details string) *Error {
	return New(http.StatusInternalServerError, CodeGenerationFailed, errors.New(msg)).WithDetails(details)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}
