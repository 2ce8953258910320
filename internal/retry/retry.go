// Package retry runs an operation under a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds a retry loop. Zero values are replaced by defaults in
// Normalize.
type Policy struct {
	MaxAttempts  int           // total attempts including the first (default: 3)
	InitialDelay time.Duration // wait after the first failure (default: 1s)
	MaxDelay     time.Duration // cap for the doubling delay (default: 30s)
}

// DefaultPolicy is used when a caller passes the zero Policy.
var DefaultPolicy = Policy{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second}

// Normalize fills unset fields from DefaultPolicy.
func (p Policy) Normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultPolicy.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy.MaxDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	return p
}

// Backoff returns the delay after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.Normalize()
	wait := p.InitialDelay
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return wait
}

// permanentError marks an error that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do stops immediately and returns it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Notify is called after each failed attempt that will be retried.
type Notify func(attempt int, wait time.Duration, err error)

// Do calls fn until it succeeds, returns a Permanent error, the attempts are
// exhausted or ctx is done. The last error is returned wrapped with the
// attempt count.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error, notify Notify) error {
	p = p.Normalize()

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := p.Backoff(attempt)
		if notify != nil {
			notify(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt, errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", p.MaxAttempts, err)
}
