package underwriting

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spec-kit/gap-pos/internal/domain"
)

// AuthError means a token could not be obtained or was rejected twice in a row.
type AuthError struct {
	Environment domain.Environment
	StatusCode  int
	Err         error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("underwriting authentication failed for %s", e.Environment)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error      { return e.Err }
func (e *AuthError) DomainCode() string { return "AUTH_FAILED" }
func (e *AuthError) DomainStatus() int  { return http.StatusBadGateway }

// Violation is one field-level complaint returned by the underwriting service.
type Violation struct {
	PropertyPath string `json:"propertyPath"`
	Message      string `json:"message"`
}

func (v Violation) String() string {
	if v.PropertyPath == "" {
		return v.Message
	}
	return v.PropertyPath + ": " + v.Message
}

// ExternalServiceError is a non-2xx answer from the underwriting service.
type ExternalServiceError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Violations []Violation
}

func (e *ExternalServiceError) Error() string {
	if len(e.Violations) > 0 {
		return strings.Join(e.Messages(), "; ")
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("underwriting %s failed with status %d: %s", e.Endpoint, e.StatusCode, msg)
}

// Messages renders one line per violation.
func (e *ExternalServiceError) Messages() []string {
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.String())
	}
	return out
}

func (e *ExternalServiceError) DomainCode() string { return "UPSTREAM_REJECTED" }

func (e *ExternalServiceError) DomainStatus() int {
	if len(e.Violations) > 0 || (e.StatusCode >= 400 && e.StatusCode < 500) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func (e *ExternalServiceError) DomainDetails() map[string]any {
	details := map[string]any{"upstream_status": e.StatusCode, "endpoint": e.Endpoint}
	if len(e.Violations) > 0 {
		fields := make(map[string][]string)
		for _, v := range e.Violations {
			fields[v.PropertyPath] = append(fields[v.PropertyPath], v.Message)
		}
		details["violations"] = fields
	}
	return details
}

// MalformedResponseError is a 2xx answer whose body could not be decoded.
type MalformedResponseError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("underwriting %s returned an unreadable response (status %d): %v", e.Endpoint, e.StatusCode, e.Err)
}

func (e *MalformedResponseError) Unwrap() error      { return e.Err }
func (e *MalformedResponseError) DomainCode() string { return "UPSTREAM_MALFORMED" }
func (e *MalformedResponseError) DomainStatus() int  { return http.StatusBadGateway }

// NetworkError is a transport failure before any HTTP status was received.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("underwriting %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error      { return e.Err }
func (e *NetworkError) DomainCode() string { return "UPSTREAM_UNREACHABLE" }
func (e *NetworkError) DomainStatus() int  { return http.StatusServiceUnavailable }

// StatusOf extracts the upstream HTTP status of err, or 0. An authentication failure
// reports its own status, not the one of the call it wraps.
func StatusOf(err error) int {
	var auth *AuthError
	if errors.As(err, &auth) {
		return auth.StatusCode
	}
	var ext *ExternalServiceError
	if errors.As(err, &ext) {
		return ext.StatusCode
	}
	return 0
}

// Rejected returns the answer of an endpoint that was reached and refused the call.
// Authentication failures never count as rejections, even when they wrap one.
func Rejected(err error) (*ExternalServiceError, bool) {
	var auth *AuthError
	if errors.As(err, &auth) {
		return nil, false
	}
	var ext *ExternalServiceError
	if errors.As(err, &ext) {
		return ext, true
	}
	return nil, false
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	ext, ok := Rejected(err)
	return ok && ext.StatusCode == http.StatusNotFound
}
