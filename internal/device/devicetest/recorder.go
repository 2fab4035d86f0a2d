// Package devicetest provides a recording device.Port for tests.
package devicetest

import (
	"sync"
	"time"

	"protube-bridge/internal/device"
)

// Call is one recorded actuation.
type Call struct {
	Command device.Command
	At      time.Time
}

// Recorder is a device.Port that records every actuation. It is safe
// for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	now        func() time.Time
	calls      []Call
	notify     chan struct{}
	level      int
	batteryErr error
	noBattery  bool
	actuateErr error
}

// NewRecorder creates a Recorder that timestamps calls with now. A nil
// now uses time.Now.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now, level: 100, notify: make(chan struct{}, 1)}
}

func (r *Recorder) Actuate(cmd device.Command) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Command: cmd, At: r.now()})
	err := r.actuateErr
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return err
}

func (r *Recorder) QueryBattery(channel uint8) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.noBattery {
		return 0, device.ErrBatteryUnsupported
	}
	return r.level, r.batteryErr
}

func (r *Recorder) BatterySupported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.noBattery
}

// SetBattery sets the result of QueryBattery.
func (r *Recorder) SetBattery(level int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.level = level
	r.batteryErr = err
}

// DisableBattery makes the recorder report no battery capability.
func (r *Recorder) DisableBattery() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noBattery = true
}

// FailActuations makes every subsequent Actuate return err.
func (r *Recorder) FailActuations(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actuateErr = err
}

// Calls returns a copy of the recorded actuations.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns the number of recorded actuations.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// CountChannel returns the number of actuations on channel.
func (r *Recorder) CountChannel(channel uint8) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Command.Channel == channel {
			n++
		}
	}
	return n
}

// WaitForCount blocks until at least n actuations are recorded or the
// timeout expires. It reports whether the count was reached.
func (r *Recorder) WaitForCount(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if r.Count() >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline:
			return r.Count() >= n
		}
	}
}
