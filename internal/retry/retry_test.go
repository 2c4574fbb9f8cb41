package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

// failingOp fails the first k calls, then succeeds.
func failingOp(k int, calls *int) func(context.Context, int) (string, error) {
	return func(_ context.Context, _ int) (string, error) {
		*calls++
		if *calls <= k {
			return "", errors.New("boom")
		}
		return "ok", nil
	}
}

func TestAttempt_FailThenSucceed(t *testing.T) {
	for maxAttempts := 1; maxAttempts <= 4; maxAttempts++ {
		for k := 0; k <= 5; k++ {
			calls := 0
			out := Attempt(context.Background(), Policy{MaxAttempts: maxAttempts, Sleep: noSleep}, failingOp(k, &calls))

			assert.Equal(t, k < maxAttempts, out.OK(), "k=%d max=%d", k, maxAttempts)
			assert.Equal(t, min(k+1, maxAttempts), calls, "k=%d max=%d", k, maxAttempts)
			assert.Equal(t, calls, out.Attempts)
			assert.Equal(t, k >= maxAttempts, out.Exhausted)
			if out.OK() {
				assert.Equal(t, "ok", out.Value)
			}
		}
	}
}

func TestAttempt_DefaultMaxAttempts(t *testing.T) {
	calls := 0
	out := Attempt(context.Background(), Policy{Sleep: noSleep}, failingOp(10, &calls))
	assert.True(t, out.Exhausted)
	assert.Equal(t, 3, calls)
}

func TestAttempt_TerminalStopsImmediately(t *testing.T) {
	calls := 0
	out := Attempt(context.Background(), Policy{MaxAttempts: 5, Sleep: noSleep}, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, Terminal(errors.New("bad config"))
	})
	assert.Equal(t, 1, calls)
	assert.False(t, out.Exhausted)
	assert.True(t, IsTerminal(out.Err))
	assert.EqualError(t, out.Err, "bad config")
}

func TestAttempt_DelayBetweenAttemptsOnly(t *testing.T) {
	var delays []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	calls := 0
	Attempt(context.Background(), Policy{MaxAttempts: 3, Delay: time.Second, Sleep: sleep}, failingOp(10, &calls))
	assert.Equal(t, []time.Duration{time.Second, time.Second}, delays)
}

func TestAttempt_OnFailure(t *testing.T) {
	var attempts []int
	calls := 0
	Attempt(context.Background(), Policy{
		MaxAttempts: 3,
		Sleep:       noSleep,
		OnFailure:   func(attempt int, _ error) { attempts = append(attempts, attempt) },
	}, failingOp(2, &calls))
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestAttempt_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	out := Attempt(ctx, Policy{MaxAttempts: 5, Sleep: noSleep}, func(_ context.Context, _ int) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	})
	assert.Equal(t, 1, calls)
	require.Error(t, out.Err)
	assert.False(t, out.Exhausted)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
