// Package retry provides a bounded retry primitive shared by the download and
// summarization stages. Callers pass an explicit Policy value so attempt
// counts and delays always trace back to configuration rather than globals.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"podharvest/internal/services"
)

// Policy describes how an operation is retried. MaxRetries counts retries
// after the first attempt, so an operation runs at most MaxRetries+1 times.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
	Backoff    float64
	MaxDelay   time.Duration
}

// Validate rejects policies that would loop forever or sleep negatively.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return services.Wrap(services.ErrConfiguration, "retry", "validate", fmt.Sprintf("max retries must be >= 0, got %d", p.MaxRetries), nil)
	}
	if p.Delay < 0 {
		return services.Wrap(services.ErrConfiguration, "retry", "validate", fmt.Sprintf("delay must be >= 0, got %s", p.Delay), nil)
	}
	if p.Backoff != 0 && p.Backoff < 1 {
		return services.Wrap(services.ErrConfiguration, "retry", "validate", fmt.Sprintf("backoff multiplier must be >= 1, got %g", p.Backoff), nil)
	}
	if p.MaxDelay < 0 {
		return services.Wrap(services.ErrConfiguration, "retry", "validate", fmt.Sprintf("max delay must be >= 0, got %s", p.MaxDelay), nil)
	}
	return nil
}

// delayFor returns the sleep before retry attempt n (1-based).
func (p Policy) delayFor(attempt int) time.Duration {
	delay := p.Delay
	backoff := p.Backoff
	if backoff == 0 {
		backoff = 1
	}
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * backoff)
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Sleeper pauses between attempts. Tests inject a recording stub; production
// callers pass nil to use time.Sleep.
type Sleeper func(time.Duration)

// Do runs op until it succeeds, exhausts the policy, or returns a terminal
// error. Attempt numbers passed to op are 1-based. Context cancellation stops
// retrying immediately and surfaces ctx.Err().
func Do(ctx context.Context, policy Policy, sleep Sleeper, op func(ctx context.Context, attempt int) error) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if !services.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt > policy.MaxRetries {
			break
		}

		delay := policy.delayFor(attempt)
		if hint := retryAfterHint(lastErr); hint > 0 {
			delay = hint
			if policy.MaxDelay > 0 && delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		}
		if delay > 0 {
			sleep(delay)
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", policy.MaxRetries+1, lastErr)
}

// retryAfterHint surfaces a server-requested delay (e.g. a Retry-After
// header) carried by the error, overriding the computed backoff.
func retryAfterHint(err error) time.Duration {
	var hinted interface{ RetryAfterHint() time.Duration }
	if errors.As(err, &hinted) {
		return hinted.RetryAfterHint()
	}
	return 0
}
