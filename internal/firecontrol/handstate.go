package firecontrol

import (
	"sync"
	"sync/atomic"
)

// HandState is the per-hand state of the bridge.
//
// triggerHeld is written only by the ingest loop (through the
// dispatcher) and read by the hand's auto-fire task. autoFireActive is
// set when a task is spawned and cleared only by that task on exit.
// stop is the cancellation token of the running task; it is nil when no
// cancellation is pending.
type HandState struct {
	triggerHeld    atomic.Bool
	autoFireActive atomic.Bool

	mu   sync.Mutex
	stop chan struct{}
}

// TriggerHeld reports whether the trigger is currently held.
func (s *HandState) TriggerHeld() bool {
	return s.triggerHeld.Load()
}

// AutoFireActive reports whether an auto-fire task is running.
func (s *HandState) AutoFireActive() bool {
	return s.autoFireActive.Load()
}

// arm installs a fresh cancellation token and returns it.
func (s *HandState) arm() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop = make(chan struct{})
	return s.stop
}

// cancel closes the current token, if any. Safe to call repeatedly and
// with no task running.
func (s *HandState) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

// disarm drops token if it is still the current one.
func (s *HandState) disarm(token chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == token {
		s.stop = nil
	}
}
