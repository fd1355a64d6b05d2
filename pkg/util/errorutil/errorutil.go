// Package errorutil carries the error envelope every API response is rendered from.
package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// DomainError is a failure with a stable machine code, an HTTP status and optional details.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithCause returns a copy of e wrapping cause. Shared sentinel values stay untouched.
func (e *DomainError) WithCause(cause error) *DomainError {
	out := *e
	out.Err = cause
	return &out
}

// Coded is implemented by errors of other packages that know their API code,
// such as upstream failures and validation results.
type Coded interface {
	error
	DomainCode() string
	DomainStatus() int
}

// Detailed is optionally implemented by Coded errors carrying structured details.
type Detailed interface {
	DomainDetails() map[string]any
}

func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewNotFound reports a missing flow, policy, document or other resource.
func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return NewDomainError("NOT_FOUND", resource+" not found", http.StatusNotFound, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

// NewInternalError hides err from the caller; it is kept for logging only.
func NewInternalError(err error) error {
	return NewDomainError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError, nil).WithCause(err)
}

// ToDomainError picks the outermost DomainError or Coded error in err's chain.
// Ledger misses become NOT_FOUND, an expired request deadline becomes TIMEOUT,
// and anything else is reported as an internal error.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var coded Coded
	if errors.As(err, &coded) {
		out := NewDomainError(coded.DomainCode(), coded.Error(), coded.DomainStatus(), nil).WithCause(err)
		if d, ok := coded.(Detailed); ok {
			out.Details = d.DomainDetails()
		}
		return out
	}
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return NewDomainError("NOT_FOUND", "record not found", http.StatusNotFound, map[string]any{}).WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewDomainError("TIMEOUT", "request timed out", http.StatusGatewayTimeout, nil).WithCause(err)
	}
	return NewInternalError(err).(*DomainError)
}
