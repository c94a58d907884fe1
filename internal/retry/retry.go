// Package retry wraps fallible remote operations with bounded
// exponential backoff. Only transient failures are retried; caller and
// configuration errors surface immediately.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	apperrors "github.com/daig/daig-node/internal/errors"
)

// Policy holds the backoff bounds for a wrapped operation
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	Jitter      bool
}

// DefaultPolicy returns the policy used when the caller configures nothing
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// Operation is a fallible unit of work executed under the policy
type Operation func(ctx context.Context) error

// Do runs op until it succeeds, fails with a non-transient error, or the
// attempt budget is spent. Exhaustion returns ErrCodeRetryExhausted
// wrapping the last underlying cause.
func (p Policy) Do(ctx context.Context, op Operation) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !apperrors.IsTransient(err) {
			return err
		}
		lastErr = err

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(p.wait(delay)):
			}
			delay = time.Duration(float64(delay) * p.multiplier())
		}
	}

	return apperrors.RetryExhausted(maxAttempts, lastErr)
}

// wait applies jitter to the next backoff interval. With jitter enabled
// the wait lands in [delay/2, delay) so that concurrent nodes do not
// hammer a recovering store in lockstep.
func (p Policy) wait(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	if !p.Jitter {
		return delay
	}
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

func (p Policy) multiplier() float64 {
	if p.Multiplier < 1 {
		return 1
	}
	return p.Multiplier
}
