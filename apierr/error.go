// Package apierr defines the uniform error shape surfaced by the query
// cache core: every failed operation carries a human message, an optional
// HTTP status, a machine-readable code and optional detail data.
// Supports: error chaining, dynamic messages, retryability classification.
package apierr

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind classifies a failure for retry policy decisions.
type Kind int

const (
	// KindNetwork covers connectivity and DNS level failures.
	KindNetwork Kind = iota
	// KindTimeout is a cooperative-cancellation deadline expiry.
	KindTimeout
	// KindHTTP is a non-2xx response from the backend.
	KindHTTP
	// KindParse is an invalid response body.
	KindParse
	// KindValidation is a 4xx the caller cannot fix by retrying.
	KindValidation
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindParse:
		return "parse"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is the typed API error. Instances are immutable: With* methods
// return clones.
type Error struct {
	kind       Kind
	statusCode int
	code       string
	msg        string
	details    map[string]any
	cause      error
}

// errorBody is the conventional REST error payload shape the backend
// returns: {"error": {"code": "...", "message": "...", "details": {...}}}
// with a flat {"code","message"} fallback.
type errorBody struct {
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// New creates an error of the given kind.
func New(kind Kind, statusCode int, code, msg string) *Error {
	return &Error{
		kind:       kind,
		statusCode: statusCode,
		code:       code,
		msg:        msg,
	}
}

// Network wraps a connectivity-level failure.
func Network(cause error) *Error {
	e := New(KindNetwork, 0, "network_failure", "Network request failed")
	e.cause = cause
	return e
}

// Timeout is the single timeout error shape: status 408 with a fixed
// message, distinct from plain network failure.
func Timeout() *Error {
	return New(KindTimeout, http.StatusRequestTimeout, "request_timeout", "Request timeout")
}

// Parse wraps an invalid response body.
func Parse(cause error) *Error {
	e := New(KindParse, 0, "parse_failure", "Invalid response body")
	e.cause = cause
	return e
}

// FromResponse converts a non-2xx response into a typed error, extracting
// the machine code and message from the body when present and falling
// back to a generic message otherwise. 4xx map to KindValidation, the
// rest to KindHTTP.
func FromResponse(statusCode int, body []byte) *Error {
	kind := KindHTTP
	if statusCode >= 400 && statusCode < 500 {
		kind = KindValidation
	}

	code := fmt.Sprintf("http_%d", statusCode)
	msg := fmt.Sprintf("Request failed with status %d", statusCode)
	var details map[string]any

	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Error != nil:
			if parsed.Error.Code != "" {
				code = parsed.Error.Code
			}
			if parsed.Error.Message != "" {
				msg = parsed.Error.Message
			}
			details = parsed.Error.Details
		case parsed.Message != "":
			msg = parsed.Message
			if parsed.Code != "" {
				code = parsed.Code
			}
		}
	}

	e := New(kind, statusCode, code, msg)
	e.details = details
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Kind returns the failure classification.
func (e *Error) Kind() Kind { return e.kind }

// StatusCode returns the HTTP status, 0 when the failure never reached
// the HTTP layer.
func (e *Error) StatusCode() int { return e.statusCode }

// Code returns the machine-readable error code.
func (e *Error) Code() string { return e.code }

// Message returns the human-readable message.
func (e *Error) Message() string { return e.msg }

// Details returns the structured detail data from the error body, if any.
func (e *Error) Details() map[string]any { return e.details }

// Unwrap supports errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether the fetch coordinator may retry this
// failure: timeouts, network failures and 5xx are retryable; 4xx and
// parse failures fail fast.
func (e *Error) Retryable() bool {
	switch e.kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTP:
		return e.statusCode >= 500
	default:
		return false
	}
}

// WithMsgf replaces the message (returns a new instance).
func (e *Error) WithMsgf(format string, args ...any) *Error {
	clone := *e
	clone.msg = fmt.Sprintf(format, args...)
	return &clone
}

// WithDetail adds one detail entry (returns a new instance).
func (e *Error) WithDetail(key string, value any) *Error {
	clone := *e
	clone.details = make(map[string]any, len(e.details)+1)
	for k, v := range e.details {
		clone.details[k] = v
	}
	clone.details[key] = value
	return &clone
}

// Wrap attaches a cause (returns a new instance).
func (e *Error) Wrap(cause error) *Error {
	if cause == nil {
		return e
	}
	clone := *e
	clone.cause = cause
	return &clone
}

// Is matches errors by kind and code so sentinel comparisons survive
// WithMsgf/Wrap clones.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind && e.code == t.code
}

// IsRetryable reports whether err is (or wraps) a retryable API error.
// Non-API errors are treated as non-retryable.
func IsRetryable(err error) bool {
	if e := AsError(err); e != nil {
		return e.Retryable()
	}
	return false
}

// AsError extracts the *Error from an error chain, nil when absent.
func AsError(err error) *Error {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}
