package core

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnauthenticated is returned whenever the backend rejects the bearer token (or there is none).
// Retrying without logging in again cannot succeed.
var ErrUnauthenticated = errors.New("authentication required")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return JoinFieldErrors(err.Fields)
	}
	return err.Err.Error()
}

// JoinFieldErrors aggregates field errors into one message, sorted by field: "body: too long; recipient: invalid".
func JoinFieldErrors(flds []FieldError) string {
	if len(flds) == 0 {
		return ""
	}
	sorted := make([]FieldError, len(flds))
	copy(sorted, flds)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Field < sorted[j].Field })

	parts := make([]string, 0, len(sorted))
	for _, f := range sorted {
		if f.Field == "" || f.Field == "non_field_errors" {
			parts = append(parts, f.Error)
			continue
		}
		parts = append(parts, f.Field+": "+f.Error)
	}
	return strings.Join(parts, "; ")
}

// RequestError is a failed call to the school API which is not an authentication failure.
// StatusCode is 0 when the request never got a response (network error).
type RequestError struct {
	StatusCode int
	Message    string
	Fields     []FieldError
	Err        error
}

func (err *RequestError) Error() string {
	msg := err.Message
	if msg == "" {
		msg = JoinFieldErrors(err.Fields)
	}
	switch {
	case err.StatusCode == 0 && err.Err != nil:
		return fmt.Sprintf("request failed: %v", err.Err)
	case msg == "":
		return fmt.Sprintf("request failed: %d %s", err.StatusCode, http.StatusText(err.StatusCode))
	default:
		return fmt.Sprintf("request failed: %d %s", err.StatusCode, msg)
	}
}

func (err *RequestError) Unwrap() error { return err.Err }

// Temporary reports whether retrying the same request later may succeed (network errors and 5xx).
func (err *RequestError) Temporary() bool {
	return err.StatusCode == 0 || err.StatusCode >= http.StatusInternalServerError || err.StatusCode == http.StatusTooManyRequests
}

// IsUnauthenticated reports whether err (or its cause) is ErrUnauthenticated.
func IsUnauthenticated(err error) bool {
	return err != nil && (errors.Cause(err) == ErrUnauthenticated || errors.Is(err, ErrUnauthenticated))
}

// AsRequestError finds a *RequestError in err's chain.
func AsRequestError(err error) (*RequestError, bool) {
	var rerr *RequestError
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
