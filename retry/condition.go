package retry

import (
	"github.com/builtwitharvadai/autoselect-querycache/apierr"
)

// Condition decides whether a failed attempt should be retried.
type Condition interface {
	// ShouldRetry reports whether to retry after err on the given
	// attempt (1-based).
	ShouldRetry(err error, attempt int) bool
}

// ConditionFunc adapts a function to the Condition interface.
type ConditionFunc func(err error) bool

// ShouldRetry implements Condition.
func (f ConditionFunc) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	return f(err)
}

// AlwaysRetry retries every non-nil error.
func AlwaysRetry() Condition {
	return ConditionFunc(func(err error) bool { return true })
}

// NeverRetry never retries.
func NeverRetry() Condition {
	return ConditionFunc(func(err error) bool { return false })
}

// OnRetryableAPIError retries only errors the apierr taxonomy classifies
// as retryable: timeouts, network failures and 5xx responses. Validation
// errors and other 4xx fail fast. This is the default condition.
func OnRetryableAPIError() Condition {
	return ConditionFunc(apierr.IsRetryable)
}

// Any retries when any of the given conditions would.
func Any(conditions ...Condition) Condition {
	return anyCondition(conditions)
}

type anyCondition []Condition

func (cs anyCondition) ShouldRetry(err error, attempt int) bool {
	for _, c := range cs {
		if c.ShouldRetry(err, attempt) {
			return true
		}
	}
	return false
}
