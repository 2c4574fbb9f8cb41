// Package retry re-invokes a fallible operation a bounded number of times.
package retry

import (
	"context"
	"errors"
	"time"
)

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy controls how many times an operation runs and the pause between runs.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first. Default: 3.
	MaxAttempts int

	// Delay is the fixed pause between attempts. Zero re-attempts immediately.
	Delay time.Duration

	// OnFailure is called after every failed attempt with its 1-based number.
	OnFailure func(attempt int, err error)

	// Sleep replaces the wall-clock pause, mainly for tests.
	Sleep Sleeper
}

// Outcome is the terminal result of Attempt.
type Outcome[T any] struct {
	Value     T
	Attempts  int
	Err       error // last error; nil on success
	Exhausted bool  // every attempt failed with a retryable error
}

// OK reports whether an attempt succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// terminalError marks an error that must stop the loop immediately.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so Attempt stops without further attempts.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err was marked with Terminal.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}

// Attempt runs op sequentially until it succeeds, returns a terminal error,
// the context is cancelled, or MaxAttempts is reached. Every other error is
// retryable.
func Attempt[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) Outcome[T] {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Sleep == nil {
		p.Sleep = Sleep
	}

	var out Outcome[T]
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		out.Attempts = attempt
		val, err := op(ctx, attempt)
		if err == nil {
			out.Value = val
			out.Err = nil
			return out
		}
		out.Err = err

		if p.OnFailure != nil {
			p.OnFailure(attempt, err)
		}

		if IsTerminal(err) || ctx.Err() != nil {
			return out
		}

		// no pause after the last attempt
		if attempt == p.MaxAttempts {
			break
		}
		if err := p.Sleep(ctx, p.Delay); err != nil {
			return out
		}
	}

	out.Exhausted = true
	return out
}
