// Package clock provides an injectable time source so the fire-control
// timing loops can be driven deterministically in tests.
//
// Production code uses Real(). Tests use Fake() and move time forward
// with Advance, using WaitForTimers to avoid racing a goroutine that is
// about to register a wait.
package clock

import "time"

// Clock abstracts the time operations used by the bridge.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. If
	// d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep blocks for at least d.
	Sleep(d time.Duration)
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
