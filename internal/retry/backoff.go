// Package retry paces reconnect attempts: an exponentially growing,
// jittered wait between dials, a bounded attempt budget, and hooks that
// let the caller decide which failures deserve another dial.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError marks a failure another attempt cannot fix, such as
// rejected credentials.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do returns it unwrapped without waiting.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a [PermanentError].
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Policy ───────────────────────────────────────────────────────────

// Backoff is a reconnect policy.  Zero fields fall back to a 1s first
// wait, doubling, capped at 60s.
type Backoff struct {
	// InitialDelay is the wait after the first failed attempt.
	InitialDelay time.Duration
	// MaxDelay caps the wait however many attempts have failed.
	MaxDelay time.Duration
	// Multiplier grows the wait after each failure.
	Multiplier float64
	// MaxAttempts counts every dial including the first; 0 keeps
	// dialing until the context ends.
	MaxAttempts int
	// Jitter spreads each wait by ±25% so clients dropped by the same
	// server restart do not come back in lockstep.
	Jitter bool

	// Retryable decides whether a failed attempt is worth another
	// dial.  A rejected error is returned as is.
	Retryable func(err error) bool
	// OnRetry observes each failed attempt just before the wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultBackoff is the policy used when the configuration has no
// reconnect settings.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
		Jitter:       true,
	}
}

// Reconnect builds the policy a session uses to come back after the
// server drops it: first wait delay, doubling up to maxDelay, at most
// attempts dials (0 means unlimited).  Zero delays keep the defaults.
func Reconnect(delay, maxDelay time.Duration, attempts int) *Backoff {
	b := DefaultBackoff()
	if delay > 0 {
		b.InitialDelay = delay
	}
	if maxDelay > 0 {
		b.MaxDelay = maxDelay
	}
	b.MaxAttempts = attempts
	return b
}

// schedule yields the successive waits of one Do call.
type schedule struct {
	next, max time.Duration
	factor    float64
	jitter    bool
}

func (b *Backoff) schedule() *schedule {
	s := &schedule{next: b.InitialDelay, max: b.MaxDelay, factor: b.Multiplier, jitter: b.Jitter}
	if s.next <= 0 {
		s.next = time.Second
	}
	if s.max <= 0 {
		s.max = 60 * time.Second
	}
	if s.factor <= 0 {
		s.factor = 2.0
	}
	return s
}

// wait returns the pause before the coming attempt and grows the next.
func (s *schedule) wait() time.Duration {
	d := s.next
	s.next = time.Duration(math.Min(float64(s.next)*s.factor, float64(s.max)))
	if s.jitter {
		return addJitter(d)
	}
	return d
}

// Do dials with fn until it succeeds, the error is permanent or not
// retryable, the attempt budget runs out, or ctx ends.  fn receives the
// 1-based attempt number.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	sched := b.schedule()

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		switch {
		case err == nil:
			return nil
		case IsPermanent(err):
			return errors.Unwrap(err)
		case b.Retryable != nil && !b.Retryable(err):
			return err
		case b.MaxAttempts > 0 && attempt >= b.MaxAttempts:
			return fmt.Errorf("gave up after %d attempts: %w", b.MaxAttempts, err)
		}

		wait := sched.wait()
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("reconnect cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// addJitter moves d by up to ±25%, never below a millisecond.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	return time.Duration(math.Max(float64(d)+delta, float64(time.Millisecond)))
}
