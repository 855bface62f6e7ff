package stream

import (
	"math/rand"
	"time"
)

const (
	// backoffBase is the delay ceiling after the first failure.
	backoffBase = time.Second

	// backoffCap bounds the exponential schedule.
	backoffCap = 64 * time.Second
)

// Ceiling returns the backoff ceiling for the given consecutive-failure
// count: min(base * 2^attempt, cap). Monotonically non-decreasing.
func Ceiling(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := backoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}

// Delay returns the actual wait before the next reconnect attempt: the
// ceiling jittered down by up to half, so simultaneously-failing workers
// don't reconnect in lockstep. Always in [Ceiling/2, Ceiling].
func Delay(attempt int, rng *rand.Rand) time.Duration {
	c := Ceiling(attempt)
	half := c / 2
	if half <= 0 {
		return c
	}
	return half + time.Duration(rng.Int63n(int64(half)+1))
}
