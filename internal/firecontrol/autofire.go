package firecontrol

import (
	"log"
	"sync"

	"protube-bridge/internal/clock"
	"protube-bridge/internal/config"
	"protube-bridge/internal/core"
	"protube-bridge/internal/device"
)

// SettingsSource provides the current settings snapshot.
type SettingsSource interface {
	Get() config.Settings
}

// AutoFire runs at most one continuous-fire task per hand.
//
// A task fires immediately, then once per auto_rate interval, re-reading
// the settings every iteration. It stops when its hand's trigger is
// released, when Cancel is called for the hand, or when the controller
// is closed. Cancellation wakes the task out of its wait, so no
// actuation starts after the task has observed the token; without an
// explicit Cancel, a released trigger is noticed within one interval.
type AutoFire struct {
	port     device.Port
	settings SettingsSource
	clock    clock.Clock
	bus      *core.EventBus
	hands    *[core.HandCount]HandState

	mu       sync.Mutex
	closed   bool
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewAutoFire creates a controller operating on hands.
func NewAutoFire(port device.Port, settings SettingsSource, clk clock.Clock, bus *core.EventBus, hands *[core.HandCount]HandState) *AutoFire {
	return &AutoFire{
		port:     port,
		settings: settings,
		clock:    clk,
		bus:      bus,
		hands:    hands,
		shutdown: make(chan struct{}),
	}
}

// Start spawns the task for h if its trigger is held and no task is
// running. It reports whether a task was started; a second Start while
// one is running is a no-op.
func (a *AutoFire) Start(h core.Hand, channel uint8) bool {
	if !h.Valid() {
		return false
	}
	st := &a.hands[h]
	if !st.TriggerHeld() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	if !st.autoFireActive.CompareAndSwap(false, true) {
		return false
	}

	token := st.arm()
	a.wg.Add(1)
	go a.run(h, channel, token)
	return true
}

// Cancel signals the task for h to stop. It is idempotent and safe to
// call when no task is running.
func (a *AutoFire) Cancel(h core.Hand) {
	if !h.Valid() {
		return
	}
	a.hands[h].cancel()
}

// Close stops every task and waits for them to exit. Start fails after
// Close.
func (a *AutoFire) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.shutdown)
	}
	a.mu.Unlock()

	a.wg.Wait()
}

func (a *AutoFire) run(h core.Hand, channel uint8, token chan struct{}) {
	defer a.wg.Done()

	st := &a.hands[h]
	log.Printf("[AutoFire] Start: %s hand", h)
	a.publish(h, true)

	shots := 0
	defer func() {
		st.disarm(token)
		st.autoFireActive.Store(false)
		log.Printf("[AutoFire] Stop: %s hand after %d shots", h, shots)
		a.publish(h, false)
	}()

	for {
		select {
		case <-token:
			return
		case <-a.shutdown:
			return
		default:
		}
		if !st.TriggerHeld() {
			return
		}

		s := a.settings.Get()
		t := s.Tuple(core.FullAuto)
		if err := a.port.Actuate(device.NewCommand(t.KickPercent, t.RumblePercent, t.DurationMs, channel)); err != nil {
			log.Printf("[AutoFire] Actuation failed on channel %d: %v", channel, err)
		}
		shots++

		select {
		case <-token:
			return
		case <-a.shutdown:
			return
		case <-a.clock.After(s.AutoFireInterval()):
		}
	}
}

func (a *AutoFire) publish(h core.Hand, active bool) {
	a.bus.Publish(core.Event{
		Type:    core.AutoFireEvent,
		Payload: core.AutoFireChanged{Hand: h, Active: active},
	})
}
