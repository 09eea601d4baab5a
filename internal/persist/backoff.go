package persist

import (
	"math/rand"
	"time"
)

// Default retry backoff values.
const (
	DefaultRetryBackoff    = 100 * time.Millisecond
	DefaultRetryBackoffMax = 5 * time.Second
)

// backoff implements exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	if initial <= 0 {
		initial = DefaultRetryBackoff
	}
	if max < initial {
		max = initial
	}
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Next returns the current delay with ±20% jitter and doubles the delay
// for the following call, capped at max.
func (b *backoff) Next() time.Duration {
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	d := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.current = b.initial
}
