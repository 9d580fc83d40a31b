package ratequeue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/jonboulle/clockwork"
)

const (
	defaultAttempts     = 3
	defaultInitialRetry = 200 * time.Millisecond
	defaultMaxRetry     = 5 * time.Second

	// the jitter draws from [current/2, current), so a backoff below 2ns
	// has nothing to draw from; doubling must not overflow
	minBackoff = 2 * time.Nanosecond
	maxBackoff = time.Duration(math.MaxInt64 / 2)
)

// ShouldRetry decides what happens after a failed attempt. attempt counts
// failures of the current invocation, starting at 1. Returning retry=false,
// or a negative delay, stops retrying and surfaces err unchanged.
type ShouldRetry func(err error, attempt int) (delay time.Duration, retry bool)

type retryConfig struct {
	clock clockwork.Clock
}

// RetryOption customizes WithRetry.
type RetryOption func(*retryConfig)

// WithRetryClock sets the clock used for backoff waits.
func WithRetryClock(c clockwork.Clock) RetryOption {
	return func(rc *retryConfig) {
		if c != nil {
			rc.clock = c
		}
	}
}

// WithRetry decorates op so that failures are retried as long as
// shouldRetry asks for it. The decorator has no attempt limit of its own;
// bounding retries is the policy's job.
//
// Waiting between attempts ends early when the operation context is done,
// in which case the decorated operation returns ctx.Err().
func WithRetry[T any](op Operation[T], shouldRetry ShouldRetry, opts ...RetryOption) (Operation[T], error) {
	if op == nil || shouldRetry == nil {
		return nil, ErrInvalidOperation
	}
	cfg := retryConfig{clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(&cfg)
	}

	return func(ctx context.Context) (T, error) {
		var zero T
		for attempt := 1; ; attempt++ {
			v, err := op(ctx)
			if err == nil {
				return v, nil
			}
			delay, retry := shouldRetry(err, attempt)
			if !retry || delay < 0 {
				return zero, err
			}
			lg.FromContext(ctx).Warn("operation attempt failed; backing off",
				lg.Int("attempt", attempt),
				lg.String("sleep", delay.String()),
				lg.Any("error", err),
			)
			timer := cfg.clock.NewTimer(delay)
			select {
			case <-timer.Chan():
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			}
		}
	}, nil
}

// FixedDelays returns a policy that retries once per listed delay, in
// order, and then gives up.
func FixedDelays(delays ...time.Duration) ShouldRetry {
	ds := append([]time.Duration(nil), delays...)
	return func(err error, attempt int) (time.Duration, bool) {
		if IsPermanent(err) || attempt > len(ds) {
			return 0, false
		}
		return ds[attempt-1], true
	}
}

// RetryPolicy describes how many times and how often an operation should be
// tried by ExponentialBackoff. Zero values are replaced with defaults and
// out of range bounds are clamped, see FillDefaults.
type RetryPolicy struct {
	// Attempts is the maximum number of tries, the first one included.
	Attempts int `yaml:"attempts"`

	// Initial is the first backoff duration.
	Initial time.Duration `yaml:"initial"`

	// Max is the cap for backoff duration.
	Max time.Duration `yaml:"max"`
}

// DefaultRetryPolicy returns the policy used when no values are configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: defaultAttempts,
		Initial:  defaultInitialRetry,
		Max:      defaultMaxRetry,
	}
}

// FillDefaults replaces zero values with defaults, keeps both bounds within
// [2ns, MaxInt64/2] and raises Max to Initial when it is smaller.
func (p *RetryPolicy) FillDefaults() {
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	if p.Initial <= 0 {
		p.Initial = defaultInitialRetry
	}
	if p.Max <= 0 {
		p.Max = defaultMaxRetry
	}
	p.Initial = min(max(p.Initial, minBackoff), maxBackoff)
	p.Max = min(max(p.Max, p.Initial), maxBackoff)
}

// ExponentialBackoff returns a policy that retries until p.Attempts tries
// have been made, waiting a jittered, exponentially growing delay capped at
// p.Max between tries.
func ExponentialBackoff(p RetryPolicy) ShouldRetry {
	p.FillDefaults()
	return func(err error, attempt int) (time.Duration, bool) {
		if IsPermanent(err) || attempt >= p.Attempts {
			return 0, false
		}
		bo := boff.New(p.Initial, p.Max, time.Now().UnixNano())
		delay := bo.Next()
		for i := 1; i < attempt; i++ {
			delay = bo.Next()
		}
		return delay, true
	}
}

// Permanent marks err as not worth retrying. The built-in policies stop on
// permanent errors; the error surfaced to the caller still unwraps to err.
//
// Example:
//
//	return 0, ratequeue.Permanent(fmt.Errorf("bad input: %w", err))
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err is wrapped with Permanent.
func IsPermanent(err error) bool {
	var e permanentError
	return errors.As(err, &e)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return fmt.Sprintf("permanent: %v", e.err) }
func (e permanentError) Unwrap() error { return e.err }
