package device

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Throttled wraps a Port with a token bucket. Actuations beyond the
// ceiling are rejected rather than queued, so a storm of upstream
// events can never back up into the hardware.
type Throttled struct {
	Port
	limiter *rate.Limiter
	dropped atomic.Uint64
}

// Throttle wraps p so that at most limit actuations per second (with
// the given burst) reach it. A non-positive limit returns p unchanged.
func Throttle(p Port, limit float64, burst int) Port {
	if limit <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		Port:    p,
		limiter: rate.NewLimiter(rate.Limit(limit), burst),
	}
}

// Actuate forwards cmd if the limiter allows it.
func (t *Throttled) Actuate(cmd Command) error {
	if !t.limiter.Allow() {
		n := t.dropped.Add(1)
		return fmt.Errorf("%w: channel %d (%d dropped so far)", ErrThrottled, cmd.Channel, n)
	}
	return t.Port.Actuate(cmd)
}

// Dropped returns how many actuations were rejected.
func (t *Throttled) Dropped() uint64 {
	return t.dropped.Load()
}
