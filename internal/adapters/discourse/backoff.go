package discourse

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff waits interval * attempt between retries: 3s, 6s, 9s, ...
// for the default interval. The source lifts its rate limit on a fixed
// window, so growing linearly is enough and keeps worst-case stalls short.
type linearBackOff struct {
	interval time.Duration
	attempt  int
}

func newLinearBackOff(interval time.Duration) backoff.BackOff {
	return &linearBackOff{interval: interval}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.interval
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
