// Package retry provides the failure classifier, backoff calculator and
// retry executor that govern every external call the service makes.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives a notification before each backoff sleep. It exists for
// progress reporting only; a panicking observer never aborts the retry loop.
type Observer func(attempt int, err error, delay time.Duration)

// Do invokes work until it succeeds or fails with a non-retryable error.
//
// The attempt count is unbounded. Transient failures are retried forever
// with capped exponential backoff, so callers that cannot wait forever must
// bound the call through ctx. Non-retryable errors propagate unchanged,
// without wrapping, so callers can inspect the original failure.
func Do[T any](ctx context.Context, p Policy, onRetry Observer, work func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		out, err := attemptOnce(ctx, p, work)
		if err == nil {
			return out, nil
		}

		cls := Classify(err)
		if !cls.Retryable {
			return zero, err
		}

		delay := Delay(attempt, p)
		notify(onRetry, attempt, err, delay)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func attemptOnce[T any](ctx context.Context, p Policy, work func(context.Context) (T, error)) (T, error) {
	if p.AttemptTimeout <= 0 {
		return work(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return work(actx)
}

func notify(onRetry Observer, attempt int, err error, delay time.Duration) {
	if onRetry == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("retry observer panicked", "panic", r, "attempt", attempt)
		}
	}()
	onRetry(attempt, err, delay)
}
