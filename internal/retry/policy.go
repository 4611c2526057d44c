// Package retry provides the bounded retry-with-sleep policy shared by the
// persistence coordinator's delete-confirmation, create-verification, and
// update-retry loops.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt failed. The loop never
// retries past MaxAttempts; callers decide whether exhaustion is fatal.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy describes a bounded attempt loop. Delay receives the 1-based
// attempt number that just finished, so a linear backoff is simply
// func(n int) time.Duration { return time.Duration(n) * 5 * time.Second }.
type Policy struct {
	MaxAttempts int
	Delay       func(attempt int) time.Duration

	// Sleep is swapped in tests so policy loops finish instantly.
	// Nil means a context-aware real sleep.
	Sleep func(ctx context.Context, d time.Duration)
}

// Fixed returns a policy with a constant delay between attempts.
func Fixed(maxAttempts int, delay time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Delay:       func(int) time.Duration { return delay },
	}
}

// Linear returns a policy whose delay grows by step per attempt.
func Linear(maxAttempts int, step time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Delay:       func(attempt int) time.Duration { return time.Duration(attempt) * step },
	}
}

// Do runs fn until it reports done, the attempts are exhausted, or the
// context ends. fn's error is informational: a non-nil error with done=false
// keeps the loop going and only the last error is joined into ErrExhausted.
func (p Policy) Do(ctx context.Context, fn func(attempt int) (done bool, err error)) error {
	if p.MaxAttempts <= 0 {
		return ErrExhausted
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		done, err := fn(attempt)
		if done {
			return err
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}
		p.sleep(ctx, p.delay(attempt))
	}

	if lastErr != nil {
		return errors.Join(ErrExhausted, lastErr)
	}
	return ErrExhausted
}

func (p Policy) delay(attempt int) time.Duration {
	if p.Delay == nil {
		return 0
	}
	return p.Delay(attempt)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(ctx, d)
		return
	}
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
