package odoo

import (
	"context"
	"time"
)

// RetryPolicy bounds the attempts of a single remote call. The delay
// between attempts is fixed.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// MaxAttempts is the total number of tries, the initial one included.
func (p RetryPolicy) MaxAttempts() int {
	return max(p.MaxRetries, 0) + 1
}

// attemptState is the bounded-attempt state machine behind ExecuteKw.
//
//	ready --next--> attempting --succeed--> done
//	                attempting --fail(retry)--> waiting --next--> attempting
//	                attempting --fail(last)--> exhausted
type attemptState struct {
	attempt int
	max     int
	lastErr error
}

func newAttemptState(p RetryPolicy) *attemptState {
	return &attemptState{max: p.MaxAttempts()}
}

// next starts another attempt. It reports false once the budget is spent.
func (s *attemptState) next() bool {
	if s.attempt >= s.max {
		return false
	}
	s.attempt++
	return true
}

// fail records err for the current attempt and reports whether another
// attempt is allowed.
func (s *attemptState) fail(err error) bool {
	s.lastErr = err
	return s.attempt < s.max
}

// Sleeper waits d between attempts. It returns early with ctx's error when
// ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryHooks observe the attempt loop.
type retryHooks struct {
	// beforeAttempt runs before every attempt; an error aborts the loop
	// and is returned as is.
	beforeAttempt func(attempt int) error
	// onRetry runs after a failed attempt that will be retried.
	onRetry func(attempt int, err error)
}

// retry runs fn until it succeeds or the policy is exhausted. The error of
// the last attempt is returned unchanged.
func retry[T any](ctx context.Context, p RetryPolicy, sleep Sleeper, hooks retryHooks, fn func(attempt int) (T, error)) (T, int, error) {
	var zero T
	st := newAttemptState(p)
	for st.next() {
		if hooks.beforeAttempt != nil {
			if err := hooks.beforeAttempt(st.attempt); err != nil {
				return zero, st.attempt, err
			}
		}
		v, err := fn(st.attempt)
		if err == nil {
			return v, st.attempt, nil
		}
		if !st.fail(err) {
			return zero, st.attempt, err
		}
		if hooks.onRetry != nil {
			hooks.onRetry(st.attempt, err)
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return zero, st.attempt, err
		}
	}
	return zero, st.attempt, st.lastErr
}
