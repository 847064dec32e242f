package connection

import (
	"math/rand/v2"
	"time"
)

// Backoff is an exponential retry delay policy. The zero value is not
// useful; start from DefaultBackoff.
type Backoff struct {
	// Initial is the delay before the second attempt.
	Initial time.Duration
	// Max caps the base delay.
	Max time.Duration
	// Multiplier grows the base delay after every attempt.
	Multiplier float64
	// Jitter adds up to this fraction of the base delay at random.
	Jitter float64
}

// DefaultBackoff waits 200ms, 400ms, 800ms, 1.6s, 3.2s and then 5s,
// each plus up to 25% jitter.
var DefaultBackoff = Backoff{
	Initial:    200 * time.Millisecond,
	Max:        5 * time.Second,
	Multiplier: 2,
	Jitter:     0.25,
}

// Base returns the delay after the given failed attempt (starting at 1)
// without jitter.
func (b Backoff) Base(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.Initial)
	for i := 1; i < attempt; i++ {
		d *= b.Multiplier
		if d >= float64(b.Max) {
			return b.Max
		}
	}
	return min(time.Duration(d), b.Max)
}

// Delay returns Base(attempt) plus random jitter.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base(attempt)
	if b.Jitter <= 0 {
		return base
	}
	return base + time.Duration(float64(base)*b.Jitter*rand.Float64())
}

// normalized fills in defaults for unset or invalid fields.
func (b Backoff) normalized() Backoff {
	if b.Initial <= 0 {
		b.Initial = DefaultBackoff.Initial
	}
	if b.Max < b.Initial {
		b.Max = max(b.Initial, DefaultBackoff.Max)
	}
	if b.Multiplier <= 1 {
		b.Multiplier = DefaultBackoff.Multiplier
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}
