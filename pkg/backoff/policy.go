// Package backoff describes how long the engine waits between attempts.
package backoff

import "time"

// Policy is either fixed (Max == 0 or Max == Initial) or exponential
// doubling from Initial and capped at Max.
type Policy struct {
	Initial time.Duration
	Max     time.Duration
}

// Fixed waits d between every attempt.
func Fixed(d time.Duration) Policy {
	return Policy{Initial: d}
}

// Exponential doubles from initial up to max.
func Exponential(initial, max time.Duration) Policy {
	return Policy{Initial: initial, Max: max}
}

// Delay returns the wait after the given number of consecutive failures.
// Zero failures yields Initial.
func (p Policy) Delay(failures int) time.Duration {
	if p.Max <= p.Initial || failures <= 0 {
		return p.Initial
	}
	d := p.Initial
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= p.Max || d <= 0 {
			return p.Max
		}
	}
	return d
}

// BackoffFunc adapts the policy to retry.CallArgs.BackoffFunc. Attempt
// numbers there start at 1 for the first retry.
func (p Policy) BackoffFunc() func(time.Duration, int) time.Duration {
	return func(_ time.Duration, attempt int) time.Duration {
		return p.Delay(attempt - 1)
	}
}
