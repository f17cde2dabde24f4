package retry

import (
	"math"
	"time"
)

// Delay returns the backoff to sleep after the given failed attempt.
// attempt starts at 1 for the delay preceding the second attempt.
//
// delay = min(initial * multiplier^(attempt-1), max). Deterministic, no
// jitter: callers issue external calls serially, so synchronized waves
// cannot form.
func Delay(attempt int, p Policy) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}
