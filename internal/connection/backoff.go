// ABOUTME: Reconnect backoff policy for the streaming connection.
// ABOUTME: Exponential delay from the attempt count, capped, with a retry ceiling.

package connection

import "time"

// BackoffPolicy computes reconnect delays from the failed-attempt count.
type BackoffPolicy struct {
	// Base is the delay for attempt 0; each subsequent attempt doubles it.
	Base time.Duration
	// Cap is the maximum delay.
	Cap time.Duration
	// MaxAttempts is the retry ceiling; once this many attempts have
	// failed, no further reconnect is scheduled.
	MaxAttempts int
}

// DefaultBackoff returns the production policy: 1s doubling up to 30s,
// five attempts.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		Base:        time.Second,
		Cap:         30 * time.Second,
		MaxAttempts: 5,
	}
}

// Delay returns the reconnect delay for the given attempt count:
// min(Base * 2^attempt, Cap).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Past 62 doublings the shift overflows; the cap applies long before.
	if attempt > 62 {
		return p.Cap
	}
	d := p.Base << uint(attempt)
	if d <= 0 || d > p.Cap {
		return p.Cap
	}
	return d
}

// Exhausted reports whether the attempt count has reached the retry ceiling.
func (p BackoffPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
