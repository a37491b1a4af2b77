package client

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newBackoff defines the delays between retry attempts of one request.
// The delays are deterministic, starting at 50 ms and doubling up to the 3 s
// ceiling, the whole budget is limited by the max elapsed time.
func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 3 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	b.Reset()
	return b
}
