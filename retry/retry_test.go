package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/builtwitharvadai/autoselect-querycache/apierr"
)

// ============================================================
// Do
// ============================================================

func TestDo_Success(t *testing.T) {
	called := 0
	err := Do(context.Background(), func() error {
		called++
		return nil
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if called != 1 {
		t.Errorf("expected 1 call, got %d", called)
	}
}

func TestDo_FailThenSuccess(t *testing.T) {
	called := 0
	err := Do(context.Background(), func() error {
		called++
		if called < 3 {
			return apierr.FromResponse(503, nil)
		}
		return nil
	}, MaxAttempts(5), Backoff(NoBackoff()))
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if called != 3 {
		t.Errorf("expected 3 calls, got %d", called)
	}
}

func TestDo_AllFailed(t *testing.T) {
	called := 0
	err := Do(context.Background(), func() error {
		called++
		return apierr.Timeout()
	}, MaxAttempts(3), Backoff(NoBackoff()))

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if called != 3 {
		t.Errorf("expected 3 calls, got %d", called)
	}

	var multiErr *MultiError
	if !errors.As(err, &multiErr) {
		t.Fatalf("expected MultiError, got %T", err)
	}
	if multiErr.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", multiErr.Attempts)
	}
	if len(multiErr.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d", len(multiErr.Errors))
	}
}

func TestDo_NonRetryableFailsFast(t *testing.T) {
	called := 0
	err := Do(context.Background(), func() error {
		called++
		return apierr.FromResponse(400, nil)
	}, MaxAttempts(5), Backoff(NoBackoff()))

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if called != 1 {
		t.Errorf("expected 1 call, got %d", called)
	}
	if Attempts(err) != 1 {
		t.Errorf("expected 1 attempt, got %d", Attempts(err))
	}
}

func TestDo_PlainErrorNotRetriedByDefault(t *testing.T) {
	called := 0
	_ = Do(context.Background(), func() error {
		called++
		return errors.New("plain")
	}, MaxAttempts(5), Backoff(NoBackoff()))

	if called != 1 {
		t.Errorf("expected 1 call, got %d", called)
	}
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	called := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, func() error {
		called++
		return apierr.Timeout()
	}, MaxAttempts(10), Backoff(ConstantBackoff(time.Second, WithJitter(0))))

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called != 1 {
		t.Errorf("expected 1 call, got %d", called)
	}
}

// ============================================================
// DoWithData
// ============================================================

func TestDoWithData_ReturnsData(t *testing.T) {
	result, err := DoWithData(context.Background(), func() (string, error) {
		return "inventory", nil
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "inventory" {
		t.Errorf("expected 'inventory', got %q", result)
	}
}

func TestDoWithData_OnRetryCallback(t *testing.T) {
	attempts := []int{}
	called := 0
	_, err := DoWithData(context.Background(), func() (int, error) {
		called++
		if called < 3 {
			return 0, apierr.Network(errors.New("refused"))
		}
		return 42, nil
	}, MaxAttempts(5), Backoff(NoBackoff()), OnRetry(func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}))

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected retry callbacks: %v", attempts)
	}
}

// ============================================================
// Backoff strategies
// ============================================================

func TestExponentialBackoff_Growth(t *testing.T) {
	b := ExponentialBackoff(100*time.Millisecond, WithJitter(0))
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := b.Next(tc.attempt); got != tc.want {
			t.Errorf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

func TestExponentialBackoff_Capped(t *testing.T) {
	b := ExponentialBackoff(time.Second, WithJitter(0), WithMaxDelay(3*time.Second))
	if got := b.Next(10); got != 3*time.Second {
		t.Errorf("expected cap at 3s, got %v", got)
	}
}

func TestConstantBackoff(t *testing.T) {
	b := ConstantBackoff(50*time.Millisecond, WithJitter(0))
	for attempt := 1; attempt <= 3; attempt++ {
		if got := b.Next(attempt); got != 50*time.Millisecond {
			t.Errorf("attempt %d: expected 50ms, got %v", attempt, got)
		}
	}
}

func TestBackoff_JitterBounded(t *testing.T) {
	b := ExponentialBackoff(100*time.Millisecond, WithJitter(0.5))
	for i := 0; i < 100; i++ {
		got := b.Next(1)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [50ms, 150ms]", got)
		}
	}
}

// ============================================================
// Conditions
// ============================================================

func TestConditions(t *testing.T) {
	timeout := apierr.Timeout()
	validation := apierr.FromResponse(422, nil)

	if !OnRetryableAPIError().ShouldRetry(timeout, 1) {
		t.Error("timeout should be retryable")
	}
	if OnRetryableAPIError().ShouldRetry(validation, 1) {
		t.Error("validation error should not be retryable")
	}
	if NeverRetry().ShouldRetry(timeout, 1) {
		t.Error("NeverRetry retried")
	}
	if !AlwaysRetry().ShouldRetry(errors.New("x"), 1) {
		t.Error("AlwaysRetry did not retry")
	}
	if AlwaysRetry().ShouldRetry(nil, 1) {
		t.Error("nil error must never retry")
	}

	any := Any(NeverRetry(), OnRetryableAPIError())
	if !any.ShouldRetry(timeout, 1) {
		t.Error("Any should retry when one condition matches")
	}
}
