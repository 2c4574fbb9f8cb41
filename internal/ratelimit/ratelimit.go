// Package ratelimit paces the batch loops against external throughput limits.
//
// Generation is paced with a fixed cadence: before every Interval-th key the run
// sleeps for Duration, regardless of any signal from the remote service.
// Publishing can additionally be capped at a fixed request rate.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jonathan/course-content-pipeline/internal/retry"
)

// Default pacing values.
const (
	DefaultInterval = 4
	DefaultDuration = 60 * time.Second
)

// Pacer inserts a pause before every Interval-th key.
type Pacer struct {
	Interval int
	Duration time.Duration
	Sleep    retry.Sleeper
	Logger   *zap.Logger
}

// NewPacer creates a Pacer. Non-positive arguments fall back to the defaults.
func NewPacer(interval int, duration time.Duration, logger *zap.Logger) *Pacer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pacer{Interval: interval, Duration: duration, Sleep: retry.Sleep, Logger: logger}
}

// ShouldPause reports whether a pause is due at the 1-based iteration index.
// Index 0 never pauses.
func ShouldPause(iteration, interval int) bool {
	return iteration > 0 && interval > 0 && iteration%interval == 0
}

// MaybePause sleeps for the configured duration when iteration is a positive
// multiple of the interval. It returns true when a pause happened.
func (p *Pacer) MaybePause(ctx context.Context, iteration int) (bool, error) {
	if !ShouldPause(iteration, p.Interval) {
		return false, nil
	}
	p.Logger.Info("pausing for rate limit",
		zap.Int("index", iteration),
		zap.Duration("duration", p.Duration),
	)
	sleep := p.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}
	if err := sleep(ctx, p.Duration); err != nil {
		return true, err
	}
	return true, nil
}

// Throttle caps the publish loop at a fixed number of requests per second.
// A nil Throttle never waits.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle returns a Throttle allowing rps requests per second, or nil
// when rps is not positive.
func NewThrottle(rps float64) *Throttle {
	if rps <= 0 {
		return nil
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait blocks until the next request is allowed.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
