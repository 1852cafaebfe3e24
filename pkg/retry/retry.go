// Package retry implements bounded retries with exponential backoff
// and jitter. Stdlib only; the callers decide which errors are worth
// another attempt by wrapping them with Retryable or by installing a
// RetryIf predicate.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryableError marks an error as transient.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so the retrier attempts it again.
// A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err carries the transient mark.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Retrier runs operations with bounded attempts and backoff delays.
type Retrier struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       float64
	retryIf      func(error) bool
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithMaxAttempts sets the total attempt count, first try included.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.initialDelay = d
		}
	}
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.maxDelay = d
		}
	}
}

// WithMultiplier sets the backoff growth factor. Values below 1 are ignored.
func WithMultiplier(m float64) Option {
	return func(r *Retrier) {
		if m >= 1.0 {
			r.multiplier = m
		}
	}
}

// WithJitter sets the jitter fraction in [0, 1] applied to each delay.
func WithJitter(j float64) Option {
	return func(r *Retrier) {
		if j >= 0 && j <= 1.0 {
			r.jitter = j
		}
	}
}

// WithRetryIf replaces the default "only Retryable errors" predicate.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) {
		r.retryIf = fn
	}
}

// New creates a Retrier. Without options: 3 attempts, 100ms initial
// delay, 30s cap, doubling, 10% jitter.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		maxAttempts:  3,
		initialDelay: 100 * time.Millisecond,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		jitter:       0.1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs operation until it succeeds, exhausts attempts, stops being
// retryable, or the context is cancelled. The returned error is the
// last operation error with the transient mark stripped.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = unwrapRetryable(err)

		shouldRetry := IsRetryable(err)
		if r.retryIf != nil {
			shouldRetry = r.retryIf(err)
		}
		if !shouldRetry || attempt == r.maxAttempts {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(r.delay(attempt)):
		}
	}

	return lastErr
}

// delay computes the backoff for the given attempt number.
func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.initialDelay) * math.Pow(r.multiplier, float64(attempt-1))
	if d > float64(r.maxDelay) {
		d = float64(r.maxDelay)
	}
	if r.jitter > 0 {
		// Spread in [-jitter, +jitter] around the base delay.
		d += d * r.jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func unwrapRetryable(err error) error {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.Err
	}
	return err
}

// LessonsAPIRetrier returns a Retrier for lesson generator calls.
// Conservative pacing keeps the client under the generator's rate limit.
func LessonsAPIRetrier() *Retrier {
	return New(
		WithMaxAttempts(3),
		WithInitialDelay(500*time.Millisecond),
		WithMaxDelay(10*time.Second),
		WithMultiplier(2.0),
		WithJitter(0.2),
	)
}

// EvaluationRetrier returns a Retrier for out-of-band achievement
// evaluation. Evaluation is idempotent, so every failure is worth
// another quick attempt; nothing upstream waits on the outcome.
func EvaluationRetrier() *Retrier {
	return New(
		WithMaxAttempts(5),
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(5*time.Second),
		WithMultiplier(1.5),
		WithJitter(0.1),
		WithRetryIf(func(error) bool { return true }),
	)
}
