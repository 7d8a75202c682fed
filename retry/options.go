package retry

import "time"

type config struct {
	maxAttempts int
	backoff     BackoffStrategy
	condition   Condition
	onRetry     func(attempt int, err error)
}

func defaultConfig() *config {
	return &config{
		maxAttempts: 3,
		backoff:     ExponentialBackoff(200 * time.Millisecond),
		condition:   OnRetryableAPIError(),
	}
}

// Option configures a retry run.
type Option func(*config)

// MaxAttempts sets the total attempt budget (including the first call).
func MaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Backoff sets the wait strategy between attempts.
func Backoff(b BackoffStrategy) Option {
	return func(c *config) {
		if b != nil {
			c.backoff = b
		}
	}
}

// WithCondition sets the retryability condition.
func WithCondition(cond Condition) Option {
	return func(c *config) {
		if cond != nil {
			c.condition = cond
		}
	}
}

// OnRetry registers a callback fired before each wait.
func OnRetry(f func(attempt int, err error)) Option {
	return func(c *config) {
		c.onRetry = f
	}
}
