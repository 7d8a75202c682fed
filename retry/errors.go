package retry

import (
	"fmt"
	"strings"
)

// MultiError aggregates the errors from every failed attempt.
type MultiError struct {
	Errors   []error
	Attempts int
}

// Error returns the last attempt's error message.
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "retry failed: no errors"
	}
	return e.Errors[len(e.Errors)-1].Error()
}

// Unwrap returns the last attempt's error so errors.Is/As see the most
// recent failure.
func (e *MultiError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// LastError returns the final attempt's error.
func (e *MultiError) LastError() error {
	return e.Unwrap()
}

// AllErrors renders every attempt's error, one per line.
func (e *MultiError) AllErrors() string {
	if len(e.Errors) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "retry failed after %d attempts:", e.Attempts)
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "\n  attempt %d: %v", i+1, err)
	}
	return b.String()
}
